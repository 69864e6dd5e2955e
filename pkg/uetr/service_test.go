package uetr

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoff-tech/go-clearing/pkg/store"
)

// memoryRepository is an append-only in-memory TrackingRepository for tests.
type memoryRepository struct {
	mu      sync.Mutex
	records []store.TrackingRecord
}

func (m *memoryRepository) Append(_ context.Context, record *store.TrackingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryRepository) FetchByUetr(_ context.Context, uetr string) ([]store.TrackingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.TrackingRecord
	for _, r := range m.records {
		if r.Uetr == uetr {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRepository) UpdateStatus(_ context.Context, uetr string, status store.TrackingStatus, reason, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].Uetr == uetr {
			transition := m.records[i]
			transition.Status = status
			transition.Reason = reason
			transition.Actor = actor
			m.records = append(m.records, transition)
			return nil
		}
	}
	return nil
}

func (m *memoryRepository) FetchUnpublished(_ context.Context, batchSize int) ([]store.TrackingRecord, error) {
	return nil, nil
}

func (m *memoryRepository) MarkPublished(_ context.Context, recordID string) error {
	return nil
}

func TestGetOrGenerate_ExternalCandidate(t *testing.T) {
	s := NewService(&memoryRepository{})

	candidate := "20260827-AB12-PC08-Q7W2-AABBCCDDEEFF"
	got, source := s.GetOrGenerate(MsgPacs008, "ZA01", candidate)
	assert.Equal(t, candidate, got, "well-formed external candidates are used as-is")
	assert.Equal(t, store.SourceExternal, source)
}

func TestGetOrGenerate_AbsentCandidate(t *testing.T) {
	s := NewService(&memoryRepository{})

	got, source := s.GetOrGenerate(MsgPain001, "ZA01", "")
	assert.True(t, Validate(got))
	assert.Equal(t, store.SourceGenerated, source)
}

func TestGetOrGenerate_MalformedCandidate(t *testing.T) {
	s := NewService(&memoryRepository{})

	got, source := s.GetOrGenerate(MsgPain001, "ZA01", "not-a-uetr")
	assert.NotEqual(t, "not-a-uetr", got)
	assert.True(t, Validate(got))
	assert.Equal(t, store.SourceGenerated, source)
}

func TestTrack_AppendsRecordPerEvent(t *testing.T) {
	repo := &memoryRepository{}
	s := NewService(repo)
	ctx := context.Background()

	u := Generate(MsgPain001, "ZA01")
	require.NoError(t, s.Track(ctx, u, MsgPain001, "ZA01", "MSG-1", store.DirectionOutbound, store.SourceGenerated))
	require.NoError(t, s.Track(ctx, u, MsgPacs002, "ZA01", "MSG-2", store.DirectionInbound, store.SourceGenerated))

	history, err := s.History(ctx, u)
	require.NoError(t, err)
	require.Len(t, history, 2, "one record per (message, direction) event")
	assert.Equal(t, store.StatusPending, history[0].Status)
	assert.Equal(t, store.DirectionOutbound, history[0].Direction)
	assert.Equal(t, "MSG-2", history[1].MessageID)
	assert.Equal(t, store.DirectionInbound, history[1].Direction)
}

func TestUpdateStatus_AppendsTransition(t *testing.T) {
	repo := &memoryRepository{}
	s := NewService(repo)
	ctx := context.Background()

	u := Generate(MsgPacs008, "ZA01")
	require.NoError(t, s.Track(ctx, u, MsgPacs008, "ZA01", "MSG-1", store.DirectionOutbound, store.SourceGenerated))
	require.NoError(t, s.UpdateStatus(ctx, u, store.StatusProcessing, "submitted", "samos-adapter"))
	require.NoError(t, s.UpdateStatus(ctx, u, store.StatusCompleted, "settled", "samos-adapter"))

	history, err := s.History(ctx, u)
	require.NoError(t, err)
	require.Len(t, history, 3, "transitions append, they never rewrite")
	assert.Equal(t, store.StatusPending, history[0].Status)
	assert.Equal(t, store.StatusProcessing, history[1].Status)
	assert.Equal(t, store.StatusCompleted, history[2].Status)
	assert.Equal(t, "settled", history[2].Reason)
}
