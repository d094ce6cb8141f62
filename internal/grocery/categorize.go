// Package grocery assigns store-aisle categories to grocery item names.
package grocery

import (
	"strings"
	"unicode"
)

// Other is the fallback category.
const Other = "Other"

// rule maps phrases and single words to one category. Phrases match as
// substrings; words match whole words, singular or plural.
type rule struct {
	category string
	phrases  []string
	words    []string
}

// rules are checked in order, phrases across all rules first.
var rules = []rule{
	{
		category: "Frozen",
		phrases:  []string{"ice cream", "frozen", "popsicle", "tater tot"},
		words:    []string{"waffle"},
	},
	{
		category: "Meat & Seafood",
		phrases:  []string{"ground beef", "ground turkey", "deli meat", "pork chop", "hot dog"},
		words: []string{"chicken", "beef", "pork", "turkey", "bacon", "sausage", "ham", "steak", "salmon",
			"shrimp", "tuna", "fish", "lamb", "crab", "lobster", "tilapia"},
	},
	{
		category: "Pantry",
		phrases: []string{"peanut butter", "olive oil", "soy sauce", "maple syrup", "baking soda",
			"baking powder", "canned", "chicken broth", "tomato sauce"},
	},
	{
		category: "Dairy",
		phrases:  []string{"almond milk", "oat milk", "half and half", "sour cream", "cream cheese"},
		words:    []string{"milk", "egg", "butter", "cheese", "yogurt", "cream"},
	},
	{
		category: "Produce",
		phrases:  []string{"green bean", "bell pepper", "sweet potato"},
		words: []string{"apple", "banana", "orange", "lemon", "lime", "avocado", "tomato", "potato",
			"onion", "garlic", "lettuce", "spinach", "kale", "broccoli", "carrot", "celery",
			"cucumber", "mushroom", "corn", "grape", "strawberry", "blueberry", "raspberry",
			"watermelon", "pineapple", "mango", "peach", "pear", "cilantro", "basil", "parsley",
			"ginger", "zucchini", "asparagus"},
	},
	{
		category: "Bakery",
		words:    []string{"bread", "bagel", "tortilla", "roll", "bun", "muffin", "croissant", "pita", "cake"},
	},
	{
		category: "Beverages",
		phrases:  []string{"orange juice", "sparkling water"},
		words:    []string{"coffee", "tea", "juice", "soda", "water", "beer", "wine", "kombucha", "lemonade"},
	},
	{
		category: "Snacks",
		words:    []string{"chip", "cracker", "pretzel", "popcorn", "cookie", "granola", "nut", "candy", "chocolate"},
	},
	{
		category: "Household",
		phrases: []string{"paper towel", "toilet paper", "dish soap", "trash bag", "aluminum foil",
			"plastic wrap", "laundry", "dishwasher"},
		words: []string{"sponge", "bleach", "napkin", "battery", "lightbulb"},
	},
	{
		category: "Personal Care",
		phrases:  []string{"hand soap", "body wash"},
		words:    []string{"shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant", "lotion", "razor", "soap", "floss"},
	},
	{
		category: "Pantry",
		words: []string{"rice", "pasta", "flour", "sugar", "salt", "pepper", "oil", "vinegar", "ketchup",
			"mustard", "mayonnaise", "honey", "cereal", "oat", "bean", "lentil", "soup", "spice", "noodle"},
	},
}

// Categorize returns the grocery category for the given item name, or Other.
// Matching is case-insensitive.
func Categorize(itemName string) string {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return Other
	}

	for _, r := range rules {
		for _, p := range r.phrases {
			if strings.Contains(name, p) {
				return r.category
			}
		}
	}

	tokens := strings.FieldsFunc(name, func(c rune) bool { return !unicode.IsLetter(c) })
	for _, r := range rules {
		for _, w := range r.words {
			for _, tok := range tokens {
				if tok == w || singular(tok) == w {
					return r.category
				}
			}
		}
	}

	return Other
}

func singular(word string) string {
	switch {
	case strings.HasSuffix(word, "ies") && len(word) > 4:
		return word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "oes"), strings.HasSuffix(word, "ches"):
		return word[:len(word)-2]
	case strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss"):
		return word[:len(word)-1]
	}
	return word
}
