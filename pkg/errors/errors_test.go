package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/fleetmap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "vehicle",
			ID:       "1HGCM82633A004352",
		}
		assert.Equal(t, "vehicle with ID 1HGCM82633A004352 not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("document", "doc-1")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := pkgerrors.NewValidationError("vin", "ABC", "must be 17 characters")
		assert.Equal(t, "validation failed for field vin: must be 17 characters", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "empty batch"}
		assert.Equal(t, "validation failed: empty batch", err.Error())
	})
}

func TestInvalidDocumentError(t *testing.T) {
	cause := pkgerrors.NewValidationError("vin", "", "required")
	err := pkgerrors.NewInvalidDocumentError("doc-7", "missing VIN", cause)

	assert.Equal(t, "invalid document doc-7: missing VIN", err.Error())
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))

	var verr *pkgerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "vin", verr.Field)

	anon := pkgerrors.NewInvalidDocumentError("", "unknown document type", nil)
	assert.Equal(t, "invalid document: unknown document type", anon.Error())
}

func TestPersistenceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := pkgerrors.NewPersistenceError("save", "rec-1", cause)

	assert.Contains(t, err.Error(), "save")
	assert.Contains(t, err.Error(), "rec-1")
	assert.True(t, pkgerrors.IsPersistence(err))
	assert.Equal(t, cause, errors.Unwrap(err))

	assert.Nil(t, pkgerrors.WrapPersistence("save", "x", nil))
	assert.True(t, pkgerrors.IsPersistence(pkgerrors.WrapPersistence("list", "", cause)))
}

func TestCatastrophicError(t *testing.T) {
	cause := &pkgerrors.PanicError{Value: "boom"}
	err := pkgerrors.NewCatastrophicError("add vehicles", true, cause)

	assert.Equal(t, "add vehicles aborted (rolled back): panic: boom", err.Error())
	assert.True(t, pkgerrors.IsCatastrophic(err))

	var perr *pkgerrors.PanicError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "boom", perr.Value)

	partial := pkgerrors.NewCatastrophicError("clear", false, errors.New("x"))
	assert.Contains(t, partial.Error(), "rollback incomplete")
}

func TestMultiError(t *testing.T) {
	var m pkgerrors.MultiError
	assert.Nil(t, m.ErrorOrNil())

	m.Add(nil)
	assert.Nil(t, m.ErrorOrNil())

	m.Add(pkgerrors.NewPersistenceError("clear", "", errors.New("down")))
	m.Add(pkgerrors.NewNotFoundError("vehicle", "v1"))

	err := m.ErrorOrNil()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 errors occurred")
	assert.True(t, pkgerrors.IsPersistence(err))
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestWrapHelpers(t *testing.T) {
	tests := []struct {
		name  string
		wrap  func(error) error
		check func(*testing.T, error)
	}{
		{
			name: "validation",
			wrap: func(err error) error { return pkgerrors.WrapValidation("year", err) },
			check: func(t *testing.T, err error) {
				assert.True(t, pkgerrors.IsValidationError(err))
			},
		},
		{
			name: "io",
			wrap: func(err error) error { return pkgerrors.WrapIO("read", "/tmp/x.yaml", err) },
			check: func(t *testing.T, err error) {
				var ioErr *pkgerrors.IOError
				assert.True(t, errors.As(err, &ioErr))
			},
		},
		{
			name: "resource",
			wrap: func(err error) error { return pkgerrors.WrapResource("fetch", "vehicle", "v1", err) },
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "failed to fetch vehicle v1")
			},
		},
		{
			name: "parse",
			wrap: func(err error) error { return pkgerrors.WrapParse("yaml", "docs.yaml", err) },
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "parse error in yaml file docs.yaml")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, tt.wrap(nil))
			err := tt.wrap(errors.New("base"))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestTimeoutError(t *testing.T) {
	err := pkgerrors.NewTimeoutError("sync", "30s", "deadline exceeded")
	assert.Equal(t, "operation sync timed out after 30s: deadline exceeded", err.Error())
	assert.True(t, pkgerrors.IsTimeout(err))
}

func TestErrorChaining(t *testing.T) {
	base := pkgerrors.NewNotFoundError("vehicle", "v1")
	wrapped := fmt.Errorf("lookup: %w", pkgerrors.WrapResource("fetch", "vehicle", "v1", base))
	assert.True(t, pkgerrors.IsNotFound(wrapped))
}

func TestConfigError(t *testing.T) {
	cause := errors.New("unknown driver")
	err := pkgerrors.NewConfigError("store", "driver \"mongo\" is not supported", cause)
	assert.Equal(t, `configuration error in store: driver "mongo" is not supported`, err.Error())
	assert.ErrorIs(t, err, cause)

	bare := pkgerrors.NewConfigError("", "missing", nil)
	assert.Equal(t, "configuration error: missing", bare.Error())
}

func TestResourceErrorWithoutID(t *testing.T) {
	err := pkgerrors.WrapResource("list", "vehicles", "", errors.New("closed"))
	assert.Equal(t, "failed to list vehicles: closed", err.Error())
}
