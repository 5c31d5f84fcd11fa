package database

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestBuildUpdate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tcases := []struct {
		name          string
		muts          []Mutation
		onlyIfActive  bool
		expectedQuery string
		expectedArgs  []interface{}
	}{
		{
			name:          "no mutations rewrites updated_at",
			muts:          nil,
			expectedQuery: "UPDATE rooms SET updated_at = $1 WHERE id = $2",
			expectedArgs:  []interface{}{now, "room1"},
		},
		{
			name:          "only if active adds session predicate",
			muts:          nil,
			onlyIfActive:  true,
			expectedQuery: "UPDATE rooms SET updated_at = $1 WHERE id = $2 AND active_session_id IS NOT NULL",
			expectedArgs:  []interface{}{now, "room1"},
		},
		{
			name: "set active session id",
			muts: []Mutation{
				SetAttribute{Name: AttrActiveSessionId, Value: "sess1"},
			},
			expectedQuery: "UPDATE rooms SET active_session_id = $1, updated_at = $2 WHERE id = $3",
			expectedArgs:  []interface{}{"sess1", now, "room1"},
		},
		{
			name: "remove active session id",
			muts: []Mutation{
				RemoveAttribute{Name: AttrActiveSessionId},
			},
			expectedQuery: "UPDATE rooms SET active_session_id = NULL, updated_at = $1 WHERE id = $2",
			expectedArgs:  []interface{}{now, "room1"},
		},
		{
			name: "add to set is idempotent",
			muts: []Mutation{
				AddToSet{Set: AttrPublishers, Member: "p1"},
			},
			expectedQuery: "UPDATE rooms SET publishers = CASE WHEN $1 = ANY(publishers) " +
				"THEN publishers ELSE array_append(publishers, $1) END, " +
				"updated_at = $2 WHERE id = $3",
			expectedArgs: []interface{}{"p1", now, "room1"},
		},
		{
			name: "remove from set",
			muts: []Mutation{
				RemoveFromSet{Set: AttrSubscribers, Member: "p1"},
			},
			expectedQuery: "UPDATE rooms SET subscribers = array_remove(subscribers, $1), " +
				"updated_at = $2 WHERE id = $3",
			expectedArgs: []interface{}{"p1", now, "room1"},
		},
		{
			name: "replace subscriber set",
			muts: []Mutation{
				SetAttribute{Name: AttrSubscribers, Value: []string{"p1", "p2"}},
			},
			expectedQuery: "UPDATE rooms SET subscribers = $1, updated_at = $2 WHERE id = $3",
			expectedArgs:  []interface{}{encodeStringArray([]string{"p1", "p2"}), now, "room1"},
		},
		{
			name: "set participant attributes",
			muts: []Mutation{
				SetParticipantAttributes{
					ParticipantId: "p1",
					Attributes:    ParticipantAttributes{"name": "alice"},
				},
			},
			expectedQuery: "UPDATE rooms SET participant_attributes = " +
				"jsonb_set(participant_attributes, ARRAY[$1], $2::jsonb, true), " +
				"updated_at = $3 WHERE id = $4",
			expectedArgs: []interface{}{"p1", `{"name":"alice"}`, now, "room1"},
		},
		{
			name: "multiple mutations share one statement",
			muts: []Mutation{
				AddToSet{Set: AttrSubscribers, Member: "p1"},
				RemoveFromSet{Set: AttrPublishers, Member: "p1"},
			},
			expectedQuery: "UPDATE rooms SET subscribers = CASE WHEN $1 = ANY(subscribers) " +
				"THEN subscribers ELSE array_append(subscribers, $1) END, " +
				"publishers = array_remove(publishers, $2), " +
				"updated_at = $3 WHERE id = $4",
			expectedArgs: []interface{}{"p1", "p1", now, "room1"},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			query, args, err := buildUpdate("room1", tc.muts, tc.onlyIfActive, now)
			assert.NoError(t, err, "expected no error building update")
			assert.Equal(t, tc.expectedQuery, query, "expected query to match")
			assert.Equal(t, tc.expectedArgs, args, "expected args to match")
		})
	}
}

func TestBuildUpdateInvalidMutations(t *testing.T) {
	tcases := []struct {
		name string
		mut  Mutation
	}{
		{
			name: "set unknown attribute",
			mut:  SetAttribute{Name: "bogus", Value: "x"},
		},
		{
			name: "set immutable id",
			mut:  SetAttribute{Name: AttrId, Value: "other"},
		},
		{
			name: "set string attribute with wrong type",
			mut:  SetAttribute{Name: AttrActiveSessionId, Value: 42},
		},
		{
			name: "set subscribers with wrong type",
			mut:  SetAttribute{Name: AttrSubscribers, Value: "p1"},
		},
		{
			name: "remove unknown attribute",
			mut:  RemoveAttribute{Name: "bogus"},
		},
		{
			name: "add to non-set attribute",
			mut:  AddToSet{Set: AttrStageArn, Member: "p1"},
		},
		{
			name: "remove from non-set attribute",
			mut:  RemoveFromSet{Set: AttrActiveSessionId, Member: "p1"},
		},
		{
			name: "participant attributes without id",
			mut:  SetParticipantAttributes{Attributes: ParticipantAttributes{"name": "alice"}},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := buildUpdate("room1", []Mutation{tc.mut}, false, time.Now())
			assert.Error(t, err, "expected error for mutation: %s", tc.name)
		})
	}
}

func TestEncodeStringArray(t *testing.T) {
	assert.Equal(t, pq.Array([]string{}), encodeStringArray(nil),
		"expected nil members to encode as an empty array")
	assert.Equal(t, pq.Array([]string{"p1"}), encodeStringArray([]string{"p1"}),
		"expected members to be wrapped for the driver")
}
