package repository

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hubso/backend/internal/apperrors"
	"github.com/hubso/backend/internal/models"
)

func TestGetOrCreateDirectDeduplicates(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")

	first, err := repo.GetOrCreateDirect(alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("first GetOrCreateDirect: %v", err)
	}
	if first.Type != models.ConversationDirect {
		t.Fatalf("expected DIRECT conversation, got %s", first.Type)
	}

	// Same pair again, both orders, must return the same conversation
	second, err := repo.GetOrCreateDirect(alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("second GetOrCreateDirect: %v", err)
	}
	reversed, err := repo.GetOrCreateDirect(bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("reversed GetOrCreateDirect: %v", err)
	}
	if second.ID != first.ID || reversed.ID != first.ID {
		t.Fatalf("DM not deduplicated: %s, %s, %s", first.ID, second.ID, reversed.ID)
	}

	members, err := repo.GetMembers(first.ID)
	if err != nil {
		t.Fatalf("GetMembers: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
}

func TestGetOrCreateDirectConcurrent(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")

	const workers = 8
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice.ID, bob.ID
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := repo.GetOrCreateDirect(a, b)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent creation produced different conversations: %s vs %s", ids[0], ids[i])
		}
	}
}

func TestGetOrCreateDirectRejectsSelf(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")

	_, err := repo.GetOrCreateDirect(alice.ID, alice.ID)
	if !errors.Is(err, apperrors.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation for self-DM, got %v", err)
	}
}

func TestGetOrCreateDirectUnknownRecipient(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")

	_, err := repo.GetOrCreateDirect(alice.ID, uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown recipient, got %v", err)
	}
}

func TestCreateGroupLifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	carol := createTestUser(t, db, "Carol")
	dave := createTestUser(t, db, "Dave")

	// Creator is included even when left out of the participant list,
	// and duplicates collapse
	group, err := repo.CreateGroup(alice.ID, "design", []uuid.UUID{bob.ID, bob.ID, carol.ID})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if !group.IsGroup() {
		t.Fatalf("expected GROUP conversation, got %s", group.Type)
	}

	members, err := repo.GetMembers(group.ID)
	if err != nil {
		t.Fatalf("GetMembers: %v", err)
	}
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}

	// Membership mutations
	if err := repo.AddParticipant(group.ID, alice.ID, dave.ID); err != nil {
		t.Fatalf("AddParticipant: %v", err)
	}
	// Adding again is idempotent
	if err := repo.AddParticipant(group.ID, alice.ID, dave.ID); err != nil {
		t.Fatalf("repeated AddParticipant: %v", err)
	}

	if err := repo.RemoveParticipant(group.ID, alice.ID, dave.ID); err != nil {
		t.Fatalf("RemoveParticipant: %v", err)
	}
	if err := repo.Leave(group.ID, carol.ID); err != nil {
		t.Fatalf("Leave: %v", err)
	}

	members, _ = repo.GetMembers(group.ID)
	if len(members) != 2 {
		t.Fatalf("expected 2 members after removals, got %d", len(members))
	}

	// Rename
	newName := "design-team"
	updated, err := repo.UpdateGroup(group.ID, alice.ID, &newName, nil)
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if updated.Name == nil || *updated.Name != newName {
		t.Fatalf("rename not applied: %+v", updated.Name)
	}
}

func TestCreateGroupTooSmall(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")

	_, err := repo.CreateGroup(alice.ID, "solo", []uuid.UUID{alice.ID})
	if !errors.Is(err, apperrors.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation for 1-member group, got %v", err)
	}
}

func TestCreateGroupUnknownParticipant(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")

	_, err := repo.CreateGroup(alice.ID, "ghosts", []uuid.UUID{uuid.New()})
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found for unknown participant, got %v", err)
	}
}

func TestDirectConversationRejectsMembershipChanges(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	carol := createTestUser(t, db, "Carol")

	dm, err := repo.GetOrCreateDirect(alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}

	if err := repo.AddParticipant(dm.ID, alice.ID, carol.ID); !errors.Is(err, apperrors.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation adding to DM, got %v", err)
	}
	if err := repo.Leave(dm.ID, alice.ID); !errors.Is(err, apperrors.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation leaving DM, got %v", err)
	}
}

func TestGroupMutationsRequireMembership(t *testing.T) {
	db := testDB(t)
	repo := NewConversationRepository(db)

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	mallory := createTestUser(t, db, "Mallory")

	group, err := repo.CreateGroup(alice.ID, "private", []uuid.UUID{bob.ID})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	name := "hijacked"
	if _, err := repo.UpdateGroup(group.ID, mallory.ID, &name, nil); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected forbidden update by non-member, got %v", err)
	}
	if err := repo.AddParticipant(group.ID, mallory.ID, mallory.ID); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("expected forbidden add by non-member, got %v", err)
	}
}

func TestListForUserOrdersByActivity(t *testing.T) {
	db := testDB(t)
	convRepo := NewConversationRepository(db)
	msgRepo := NewMessageRepository(db)

	alice := createTestUser(t, db, "Alice")
	bob := createTestUser(t, db, "Bob")
	carol := createTestUser(t, db, "Carol")

	dm, err := convRepo.GetOrCreateDirect(alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreateDirect: %v", err)
	}
	group, err := convRepo.CreateGroup(alice.ID, "standup", []uuid.UUID{carol.ID})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}

	// Activity in the DM moves it above the newer group
	if _, err := msgRepo.Send(dm.ID, bob.ID, "hello", "", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	conversations, err := convRepo.ListForUser(alice.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].ID != dm.ID {
		t.Fatalf("expected DM first after activity, got %s", conversations[0].ID)
	}
	if conversations[0].LastMessage == nil || conversations[0].LastMessage.Content != "hello" {
		t.Fatalf("expected last message preview, got %+v", conversations[0].LastMessage)
	}
	if conversations[0].UnreadCount != 1 {
		t.Fatalf("expected 1 unread in DM, got %d", conversations[0].UnreadCount)
	}
	if conversations[1].ID != group.ID {
		t.Fatalf("expected group second, got %s", conversations[1].ID)
	}
}
