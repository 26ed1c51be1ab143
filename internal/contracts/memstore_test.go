package contracts

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lancehub-io/lancehub/internal/models"
)

// memStore is an in-memory Store with the same transactional and guard
// semantics as the postgres implementation: WithTx snapshots all state and
// restores it when the callback errors, DebitBalance is all-or-nothing, and
// InsertContract enforces the one-active-contract-per-job rule.
type memStore struct {
	mu         sync.Mutex
	users      map[string]*models.User
	contracts  map[string]*models.Contract
	milestones map[string]*models.Milestone
	jobs       map[string]*models.Job
	chats      map[string]*models.Chat
	messages   map[string]*models.Message
	txns       []models.Transaction

	// failOn injects an error on the next call of the named method.
	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:      map[string]*models.User{},
		contracts:  map[string]*models.Contract{},
		milestones: map[string]*models.Milestone{},
		jobs:       map[string]*models.Job{},
		chats:      map[string]*models.Chat{},
		messages:   map[string]*models.Message{},
		failOn:     map[string]error{},
	}
}

func (s *memStore) fail(method string) error {
	if err, ok := s.failOn[method]; ok {
		delete(s.failOn, method)
		return err
	}
	return nil
}

func (s *memStore) snapshot() *memStore {
	cp := newMemStore()
	for k, v := range s.users {
		u := *v
		cp.users[k] = &u
	}
	for k, v := range s.contracts {
		c := *v
		cp.contracts[k] = &c
	}
	for k, v := range s.milestones {
		m := *v
		cp.milestones[k] = &m
	}
	for k, v := range s.jobs {
		j := *v
		cp.jobs[k] = &j
	}
	for k, v := range s.chats {
		c := *v
		cp.chats[k] = &c
	}
	for k, v := range s.messages {
		m := *v
		cp.messages[k] = &m
	}
	cp.txns = append([]models.Transaction(nil), s.txns...)
	return cp
}

func (s *memStore) restore(snap *memStore) {
	s.users = snap.users
	s.contracts = snap.contracts
	s.milestones = snap.milestones
	s.jobs = snap.jobs
	s.chats = snap.chats
	s.messages = snap.messages
	s.txns = snap.txns
}

func (s *memStore) WithTx(_ context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	if err := s.fail("GetUser"); err != nil {
		return nil, err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (s *memStore) DebitBalance(_ context.Context, userID string, amount int64) error {
	if err := s.fail("DebitBalance"); err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if u.Balance < amount {
		return ErrInsufficientBalance
	}
	u.Balance -= amount
	return nil
}

func (s *memStore) CreditBalance(_ context.Context, userID string, amount int64) error {
	if err := s.fail("CreditBalance"); err != nil {
		return err
	}
	u, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.Balance += amount
	return nil
}

func (s *memStore) InsertContract(_ context.Context, ct *models.Contract) error {
	if err := s.fail("InsertContract"); err != nil {
		return err
	}
	if ct.JobID != nil {
		for _, existing := range s.contracts {
			if existing.JobID != nil && *existing.JobID == *ct.JobID && existing.Status != models.ContractRejected {
				return ErrContractExists
			}
		}
	}
	cp := *ct
	s.contracts[ct.ID] = &cp
	return nil
}

func (s *memStore) GetContract(_ context.Context, id string) (*models.Contract, error) {
	ct, ok := s.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *ct
	return &out, nil
}

func (s *memStore) UpdateContract(_ context.Context, id string, patch ContractPatch) (*models.Contract, error) {
	ct, ok := s.contracts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		ct.Title = patch.Title
	}
	if patch.Description != nil {
		ct.Description = *patch.Description
	}
	if patch.Amount != nil {
		ct.Amount = *patch.Amount
	}
	if patch.Status != nil {
		ct.Status = *patch.Status
	}
	if patch.Attachments != nil {
		ct.Attachments = patch.Attachments
	}
	out := *ct
	return &out, nil
}

func (s *memStore) ListContracts(_ context.Context, userID string) ([]models.Contract, error) {
	var out []models.Contract
	for _, ct := range s.contracts {
		if ct.BuyerID == userID || ct.SellerID == userID {
			out = append(out, *ct)
		}
	}
	return out, nil
}

func (s *memStore) InsertMilestone(_ context.Context, m *models.Milestone) error {
	if err := s.fail("InsertMilestone"); err != nil {
		return err
	}
	cp := *m
	s.milestones[m.ID] = &cp
	return nil
}

func (s *memStore) GetMilestone(_ context.Context, id string) (*models.Milestone, error) {
	m, ok := s.milestones[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m
	return &out, nil
}

func (s *memStore) TransitionMilestone(_ context.Context, id string, from []models.MilestoneStatus, to models.MilestoneStatus) (bool, error) {
	if err := s.fail("TransitionMilestone"); err != nil {
		return false, err
	}
	m, ok := s.milestones[id]
	if !ok {
		return false, ErrNotFound
	}
	for _, f := range from {
		if m.Status == f {
			m.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) MilestonesByContract(_ context.Context, contractID string) ([]models.Milestone, error) {
	var out []models.Milestone
	for _, m := range s.milestones {
		if m.ContractID == contractID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memStore) MilestoneTotals(_ context.Context, userID, role string) (map[models.MilestoneStatus]int64, error) {
	totals := map[models.MilestoneStatus]int64{}
	for _, m := range s.milestones {
		ct, ok := s.contracts[m.ContractID]
		if !ok {
			continue
		}
		if (role == "buyer" && ct.BuyerID == userID) || (role == "seller" && ct.SellerID == userID) {
			totals[m.Status] += m.Amount
		}
	}
	return totals, nil
}

func (s *memStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *j
	return &out, nil
}

func (s *memStore) SetJobStatus(_ context.Context, jobID string, status models.JobStatus) error {
	if err := s.fail("SetJobStatus"); err != nil {
		return err
	}
	j, ok := s.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	j.Status = status
	return nil
}

func (s *memStore) GetChat(_ context.Context, id string) (*models.Chat, error) {
	c, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *memStore) FindOrCreateChat(_ context.Context, buyerID, sellerID string, contractID *string) (*models.Chat, error) {
	for _, c := range s.chats {
		if c.BuyerID != buyerID || c.SellerID != sellerID {
			continue
		}
		if contractID == nil && c.ContractID == nil {
			out := *c
			return &out, nil
		}
		if contractID != nil && c.ContractID != nil && *contractID == *c.ContractID {
			out := *c
			return &out, nil
		}
	}
	c := &models.Chat{
		ID:         fmt.Sprintf("chat-%d", len(s.chats)+1),
		BuyerID:    buyerID,
		SellerID:   sellerID,
		ContractID: contractID,
	}
	s.chats[c.ID] = c
	out := *c
	return &out, nil
}

func (s *memStore) InsertMessage(_ context.Context, msg *models.Message) error {
	if err := s.fail("InsertMessage"); err != nil {
		return err
	}
	cp := *msg
	s.messages[msg.ID] = &cp
	return nil
}

func (s *memStore) GetMessage(_ context.Context, id string) (*models.Message, error) {
	m, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m
	return &out, nil
}

func (s *memStore) PatchMessageStatus(_ context.Context, messageID, from, to string) (bool, error) {
	m, ok := s.messages[messageID]
	if !ok {
		return false, ErrNotFound
	}
	var data map[string]any
	if err := json.Unmarshal(m.Data, &data); err != nil {
		return false, err
	}
	if data["status"] != from {
		return false, nil
	}
	data["status"] = to
	b, err := json.Marshal(data)
	if err != nil {
		return false, err
	}
	m.Data = b
	return true, nil
}

func (s *memStore) RecordTransaction(_ context.Context, t *models.Transaction) error {
	if err := s.fail("RecordTransaction"); err != nil {
		return err
	}
	s.txns = append(s.txns, *t)
	return nil
}
