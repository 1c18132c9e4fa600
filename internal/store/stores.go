package store

import (
	"context"
	"sync"

	"splitbook/internal/api"
	"splitbook/internal/models"
)

// NewExpenses builds the expenses store backed by client.
func NewExpenses(client *api.Client) *Collection[models.Expense, models.ExpenseCreate] {
	return NewCollection(
		func(e models.Expense) int64 { return e.ID },
		Remote[models.Expense, models.ExpenseCreate]{
			Fetch:  client.Expenses,
			Add:    client.CreateExpense,
			Update: client.UpdateExpense,
			Delete: client.DeleteExpense,
		},
	)
}

// NewSharedExpenses builds the store over the aggregated share-expenses
// collection.
func NewSharedExpenses(client *api.Client) *Collection[models.Share, models.ShareCreate] {
	return NewCollection(
		func(s models.Share) int64 { return s.ID },
		Remote[models.Share, models.ShareCreate]{
			Fetch:  client.SharedExpenses,
			Update: client.UpdateShare,
			Delete: client.DeleteShare,
		},
	)
}

// Friends is the friend-list store. It follows the common collection
// pattern except for Add: the add endpoint resolves a bare username and
// returns no friend record, so a successful add refreshes the list to
// pick up the canonical entry.
type Friends struct {
	*Collection[models.Friend, struct{}]
	client *api.Client
}

// NewFriends builds the friends store backed by client.
func NewFriends(client *api.Client) *Friends {
	return &Friends{
		Collection: NewCollection(
			func(f models.Friend) int64 { return f.ID },
			Remote[models.Friend, struct{}]{
				Fetch:  client.Friends,
				Delete: client.RemoveFriend,
			},
		),
		client: client,
	}
}

// Add resolves username into a friendship. The server alone decides
// whether the user exists, is already a friend, or is the caller; every
// rejection surfaces as the same generic store error.
func (f *Friends) Add(ctx context.Context, username string) error {
	return f.Run(OpAdd, func() error {
		if err := f.client.AddFriend(ctx, username); err != nil {
			return err
		}
		list, err := f.client.Friends(ctx)
		if err != nil {
			return err
		}
		f.Replace(list)
		return nil
	})
}

// ProfileStore holds the singleton student profile for the session.
type ProfileStore struct {
	mu      sync.Mutex
	profile *models.Profile

	ops    *Collection[models.Profile, models.ProfileUpdate]
	client *api.Client
}

// NewProfile builds the profile store backed by client.
func NewProfile(client *api.Client) *ProfileStore {
	return &ProfileStore{
		// The collection carries only op status and the error slot; the
		// singleton record lives on the store itself.
		ops:    NewCollection[models.Profile, models.ProfileUpdate](func(models.Profile) int64 { return 0 }, Remote[models.Profile, models.ProfileUpdate]{}),
		client: client,
	}
}

// Current returns the cached profile, or nil before the first
// successful fetch.
func (p *ProfileStore) Current() *models.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.profile == nil {
		return nil
	}
	clone := *p.profile
	return &clone
}

// Status returns the lifecycle state of one operation kind.
func (p *ProfileStore) Status(op Op) Status { return p.ops.Status(op) }

// LastError returns the transient error slot.
func (p *ProfileStore) LastError() ErrorState { return p.ops.LastError() }

// AckError clears the error slot if generation still matches.
func (p *ProfileStore) AckError(generation uint64) { p.ops.AckError(generation) }

// Fetch replaces the cached profile with the server's record.
func (p *ProfileStore) Fetch(ctx context.Context) error {
	return p.ops.Run(OpFetch, func() error {
		profile, err := p.client.Profile(ctx)
		if err != nil {
			return err
		}
		p.set(profile)
		return nil
	})
}

// Update applies a partial update and replaces the cached profile with
// the returned record.
func (p *ProfileStore) Update(ctx context.Context, update models.ProfileUpdate) error {
	return p.ops.Run(OpUpdate, func() error {
		profile, err := p.client.UpdateProfile(ctx, update)
		if err != nil {
			return err
		}
		p.set(profile)
		return nil
	})
}

func (p *ProfileStore) set(profile models.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.profile = &profile
}
