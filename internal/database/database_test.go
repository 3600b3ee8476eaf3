package database

import (
	"context"
	"testing"
	"time"
	"tracklift/internal/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCacheConstants(t *testing.T) {
	assert.Equal(t, 0, GENERAL_CACHE_INDEX)
	assert.Equal(t, 1, RATE_LIMIT_CACHE_INDEX)
	assert.Equal(t, 2, DEDUP_CACHE_INDEX)
	assert.Equal(t, 3, EVENTS_CACHE_INDEX)
	assert.Equal(t, 4, RESOLVER_CACHE_INDEX)
}

func TestDB_StructCreation(t *testing.T) {
	log := logger.New("test")

	db := &DB{
		log: log,
	}

	assert.NotNil(t, db)
	assert.Equal(t, log, db.log)
	assert.Nil(t, db.SQL)
}

func TestTXDefer_IsDefined(t *testing.T) {
	log := logger.New("test")

	assert.NotNil(t, TXDefer)
	assert.NotNil(t, log)
}

func TestNewCacheBuilder_KeyTypes(t *testing.T) {
	strBuilder := NewCacheBuilder[string](nil, "artist:123")
	assert.Equal(t, "artist:123", strBuilder.key)

	id := uuid.New()
	uuidBuilder := NewCacheBuilder[uuid.UUID](nil, id)
	assert.Equal(t, id.String(), uuidBuilder.key)

	keysBuilder := NewCacheBuilder[[]string](nil, []string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, keysBuilder.keys)
}

func TestCacheBuilder_WithHashPattern(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "123").WithHashPattern("artist:%s")
	assert.Equal(t, "artist:123", cb.key)

	cb2 := NewCacheBuilder[string](nil, "123").WithHashPattern("")
	assert.Equal(t, "123", cb2.key)
}

func TestCacheBuilder_WithHash(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "123").WithHash("track")
	assert.Equal(t, "track:123", cb.key)

	cb2 := NewCacheBuilder[string](nil, "123").WithHash("")
	assert.Equal(t, "123", cb2.key)
}

func TestCacheBuilder_WithStruct_MarshalError(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "k").WithStruct(make(chan int))
	assert.Error(t, cb.err)
}

func TestCacheBuilder_Set_RequiresKeyAndValue(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "").WithValue("v")
	err := cb.Set()
	assert.EqualError(t, err, "key is required")

	cb2 := NewCacheBuilder[string](nil, "k")
	err = cb2.Set()
	assert.EqualError(t, err, "value is required")
}

func TestCacheBuilder_Get_RequiresKey(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "")
	var out string
	found, err := cb.Get(&out)
	assert.False(t, found)
	assert.EqualError(t, err, "key is required")
}

func TestCacheBuilder_MGet_RequiresKeys(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "k")
	var out []any
	found, err := cb.MGet(&out)
	assert.False(t, found)
	assert.EqualError(t, err, "keys is required")
}

func TestCacheBuilder_SetSadd_RequiresMember(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "k")
	err := cb.SetSadd()
	assert.EqualError(t, err, "member is required")

	cb2 := NewCacheBuilder[string](nil, "k").WithMember("m")
	assert.Equal(t, "m", cb2.member)

	id := uuid.New()
	cb3 := NewCacheBuilder[string](nil, "k").WithMemberUUID(id)
	assert.Equal(t, id.String(), cb3.member)
}

func TestCacheBuilder_RemoveSetMember_RequiresMember(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "k")
	err := cb.RemoveSetMember()
	assert.EqualError(t, err, "member is required")
}

func TestCacheBuilder_PropagatesMarshalErrBeforeNetworkCall(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "k").WithStruct(make(chan int)).WithMember("m")

	_, err := cb.Get(new(string))
	assert.Error(t, err)

	err = cb.Set()
	assert.Error(t, err)

	err = cb.SetSadd()
	assert.Error(t, err)

	err = cb.RemoveSetMember()
	assert.Error(t, err)
}

func TestCacheBuilder_createTimeoutContext(t *testing.T) {
	cb := NewCacheBuilder[string](nil, "k").WithTimeout(5 * time.Second)
	ctx, cancel := cb.createTimeoutContext()
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)

	parentCtx, parentCancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer parentCancel()
	cb2 := NewCacheBuilder[string](nil, "k").WithContext(parentCtx).WithTimeout(5 * time.Second)
	ctx2, cancel2 := cb2.createTimeoutContext()
	defer cancel2()
	deadline2, ok := ctx2.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(1*time.Second), deadline2, 500*time.Millisecond)
}

func TestIsKeyNotFoundError(t *testing.T) {
	assert.False(t, isKeyNotFoundError(nil))
	assert.True(t, isKeyNotFoundError(errStringKeyNotFound{}))
}

type errStringKeyNotFound struct{}

func (errStringKeyNotFound) Error() string { return "key not found" }
