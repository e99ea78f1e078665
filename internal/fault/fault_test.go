package fault

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(KindBrokenLogStream, "sync", "gap"))
	assert.Equal(t, KindBrokenLogStream, KindOf(err))
	assert.True(t, Is(err, KindBrokenLogStream))
	assert.False(t, Is(nil, KindBrokenLogStream))
}

func TestKindOf_Plain(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
}

func TestClass(t *testing.T) {
	assert.Equal(t, ClassTransport, Class(KindServerSession))
	assert.Equal(t, ClassConflict, Class(KindWrongPin))
	assert.Equal(t, ClassValidation, Class(KindCircularPeg))
	assert.Equal(t, ClassConsistency, Class(KindRecordDoesNotExist))
	assert.Equal(t, ClassUnknown, Class(KindUnknown))
}

func TestFromHTTP(t *testing.T) {
	conflict := HTTPStatus("patch config", http.StatusConflict, "")

	err := FromHTTP("update config", conflict, http.StatusConflict, http.StatusUnprocessableEntity)
	assert.Equal(t, KindConflictingUpdate, KindOf(err))
	assert.Equal(t, http.StatusConflict, StatusOf(err))

	// Status not declared by the operation: unchanged.
	err = FromHTTP("update config", conflict, http.StatusUnprocessableEntity)
	assert.Equal(t, KindHTTP, KindOf(err))

	assert.NoError(t, FromHTTP("noop", nil, http.StatusConflict))

	other := New(KindServerSession, "get", "offline")
	assert.Same(t, other, FromHTTP("get", other, http.StatusConflict))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(HTTPStatus("get", http.StatusNotFound, "")))
	assert.True(t, IsNotFound(FromHTTP("get", HTTPStatus("get", 404, ""), 404)))
	assert.False(t, IsNotFound(HTTPStatus("get", http.StatusGone, "")))
}

func TestError_Message(t *testing.T) {
	err := &Error{Kind: KindHTTP, Op: "get wallet", Status: 500, Message: "oops"}
	assert.Equal(t, "get wallet: HTTP 500: oops", err.Error())
}
