package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type renameInput struct {
	ID   string
	Name string
}

func TestAuditedRecordsSuccess(t *testing.T) {
	store := NewMemoryStore()
	sink := NewSink(store, nil)

	op := Audited(sink, ActionUpdate, EntityProject,
		func(_ context.Context, in renameInput) (string, error) { return in.Name, nil },
		func(in renameInput, out string) (string, any) { return in.ID, map[string]string{"name": out} },
	)

	ctx := WithActor(context.Background(), "pm@x.com")
	got, err := op(ctx, renameInput{ID: "42", Name: "Apollo"})
	require.NoError(t, err)
	assert.Equal(t, "Apollo", got)

	require.Eventually(t, func() bool { return store.Len() == 1 }, timeout, tick)
	recs, _ := store.List(context.Background(), Filter{})
	assert.Equal(t, ActionUpdate, recs[0].Action)
	assert.Equal(t, "pm@x.com", recs[0].Actor)
	require.NotNil(t, recs[0].EntityID)
	assert.Equal(t, "42", *recs[0].EntityID)
	assert.JSONEq(t, `{"name":"Apollo"}`, string(recs[0].Payload))
}

func TestAuditedRecordsGenericFailure(t *testing.T) {
	store := NewMemoryStore()
	sink := NewSink(store, nil)
	boom := errors.New("project not found")

	op := Audited(sink, ActionDelete, EntityProject,
		func(context.Context, string) (struct{}, error) { return struct{}{}, boom },
		func(id string, _ struct{}) (string, any) { return id, nil },
	)
	_, err := op(context.Background(), "99")
	require.ErrorIs(t, err, boom)

	require.Eventually(t, func() bool { return store.Len() == 1 }, timeout, tick)
	recs, _ := store.List(context.Background(), Filter{})
	assert.Equal(t, ActionGenericFailure, recs[0].Action)
	var payload FailurePayload
	require.NoError(t, json.Unmarshal(recs[0].Payload, &payload))
	assert.Equal(t, ActionDelete, payload.Operation)
	assert.Equal(t, "project not found", payload.Error)
}
