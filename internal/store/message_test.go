package store

import (
	"context"
	"testing"

	"github.com/dukerupert/hearth/internal/model"
)

func TestMessagePinnedFirst(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMessageStore(db)
	ctx := context.Background()
	h, admin := seedHousehold(t, db, "Smith")

	ms.Create(ctx, &model.Message{HouseholdID: h.ID, AuthorID: admin.ID, Type: model.MessageAnnouncement, Content: "Pinned", Pinned: true})
	ms.Create(ctx, &model.Message{HouseholdID: h.ID, AuthorID: admin.ID, Type: model.MessageNote, Content: "Newest"})

	msgs, err := ms.List(ctx, h.ID, MessageFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "Pinned" {
		t.Fatalf("messages = %+v, want pinned first", msgs)
	}
	if msgs[0].AuthorName != admin.Name {
		t.Errorf("author = %q, want %q", msgs[0].AuthorName, admin.Name)
	}

	notes, _ := ms.List(ctx, h.ID, MessageFilter{Type: model.MessageNote})
	if len(notes) != 1 || notes[0].Content != "Newest" {
		t.Errorf("notes = %+v", notes)
	}
	pinned, _ := ms.List(ctx, h.ID, MessageFilter{PinnedOnly: true, Limit: 5})
	if len(pinned) != 1 {
		t.Errorf("pinned = %d, want 1", len(pinned))
	}
}

func TestMessageTenantIsolation(t *testing.T) {
	db := setupTestDB(t)
	ms := NewMessageStore(db)
	ctx := context.Background()
	h1, a1 := seedHousehold(t, db, "One")
	h2, _ := seedHousehold(t, db, "Two")

	msg, _ := ms.Create(ctx, &model.Message{HouseholdID: h1.ID, AuthorID: a1.ID, Type: model.MessageNote, Content: "Secret"})
	if got, _ := ms.Get(ctx, h2.ID, msg.ID); got != nil {
		t.Error("message visible from another household")
	}
	ms.Delete(ctx, h2.ID, msg.ID)
	if got, _ := ms.Get(ctx, h1.ID, msg.ID); got == nil {
		t.Error("message deleted through another household")
	}
}
