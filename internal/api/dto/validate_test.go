package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

func TestValidateCreateTicket(t *testing.T) {
	assert.NoError(t, Validate(CreateTicketRequest{Title: "x", Description: "y"}))
	assert.NoError(t, Validate(CreateTicketRequest{Title: "x", Description: "y", Priority: "high"}))

	err := Validate(CreateTicketRequest{Priority: "urgent"})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "VALIDATION_FAILED", de.Code)
	assert.Equal(t, "required", de.Details["title"])
	assert.Equal(t, "required", de.Details["description"])
	assert.Equal(t, "must be one of [low medium high]", de.Details["priority"])
}

func TestValidateCountsRunes(t *testing.T) {
	err := Validate(CreateTicketRequest{Title: strings.Repeat("ç", 500), Description: "y"})
	assert.NoError(t, err)

	err = Validate(CreateTicketRequest{Title: strings.Repeat("ç", 501), Description: "y"})
	de := apperrors.ToDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, "max 500 characters", de.Details["title"])
}

func TestValidateAssignAndStatus(t *testing.T) {
	assert.NoError(t, Validate(AssignRequest{}))
	assert.Error(t, Validate(AssignRequest{TechID: "bob"}))
	assert.NoError(t, Validate(ChangeStatusRequest{Status: "in_progress"}))
	assert.Error(t, Validate(ChangeStatusRequest{Status: "reopened"}))
}
