package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scripthost/internal/entity"
)

type received struct {
	id   entity.ID
	args []any
}

func TestHub_EmitFansOutInOrder(t *testing.T) {
	h := NewHub(nil)
	id := entity.NewID()

	var order []string
	h.Subscribe(entity.EventEnterEntity, func(entity.ID, []any) { order = append(order, "first") })
	h.Subscribe(entity.EventEnterEntity, func(entity.ID, []any) { order = append(order, "second") })
	h.Subscribe(entity.EventLeaveEntity, func(entity.ID, []any) { order = append(order, "other") })

	require.NoError(t, h.Emit(entity.EventEnterEntity, id))
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestHub_EmitPassesArgs(t *testing.T) {
	h := NewHub(nil)
	id := entity.NewID()

	var got []received
	h.Subscribe(entity.EventMousePressOnEntity, func(id entity.ID, args []any) {
		got = append(got, received{id, args})
	})

	ev := entity.MouseEvent{X: 3, Y: 4, Button: "LEFT", IsLeft: true}
	require.NoError(t, h.Emit(entity.EventMousePressOnEntity, id, ev))

	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].id)
	assert.Equal(t, []any{ev}, got[0].args)
}

func TestHub_EmitUnknownCategory(t *testing.T) {
	h := NewHub(nil)
	err := h.Emit("teleportEntity", entity.NewID())
	assert.Error(t, err)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub(nil)
	calls := 0
	cancel := h.Subscribe(entity.EventEnterEntity, func(entity.ID, []any) { calls++ })

	require.NoError(t, h.Emit(entity.EventEnterEntity, entity.NewID()))
	cancel()
	require.NoError(t, h.Emit(entity.EventEnterEntity, entity.NewID()))

	assert.Equal(t, 1, calls)
}

func TestHub_CollideNotifiesBothSides(t *testing.T) {
	h := NewHub(nil)
	a, b := entity.NewID(), entity.NewID()

	var got []received
	h.Subscribe(entity.EventCollisionWithEntity, func(id entity.ID, args []any) {
		got = append(got, received{id, args})
	})

	c := entity.Collision{Type: entity.CollisionStart, IDA: a, IDB: b}
	require.NoError(t, h.Collide(c))

	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].id)
	assert.Equal(t, []any{b, c}, got[0].args)
	assert.Equal(t, b, got[1].id)
	assert.Equal(t, []any{a, c}, got[1].args)
}

func TestHub_Delete(t *testing.T) {
	h := NewHub(nil)
	id := entity.NewID()
	h.Add(id, "file:///scripts/door.js")

	var deleted []entity.ID
	cancel := h.OnDeleting(func(id entity.ID) {
		// Entity is still known while subscribers run.
		_, ok := h.Script(id)
		assert.True(t, ok)
		deleted = append(deleted, id)
	})

	h.Delete(id)
	assert.Equal(t, []entity.ID{id}, deleted)
	_, ok := h.Script(id)
	assert.False(t, ok)

	cancel()
	h.Delete(entity.NewID())
	assert.Len(t, deleted, 1)
}

func TestHub_Entities(t *testing.T) {
	h := NewHub(nil)
	a := entity.MustParse("00000000-0000-7000-8000-000000000002")
	b := entity.MustParse("00000000-0000-7000-8000-000000000001")
	h.Add(a, "a.js")
	h.Add(b, "b.js")

	assert.Equal(t, []entity.ID{b, a}, h.Entities())
}
