package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTenantFromContext(t *testing.T) {
	id := uuid.New()
	ctx := WithTenant(context.Background(), id)

	if got := TenantFromContext(ctx); got != id {
		t.Errorf("expected %s, got %s", id, got)
	}
}

func TestTenantFromContext_Empty(t *testing.T) {
	if got := TenantFromContext(context.Background()); got != uuid.Nil {
		t.Errorf("expected zero UUID from empty context, got %s", got)
	}
}

func TestTenantFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "not-a-uuid")
	if got := TenantFromContext(ctx); got != uuid.Nil {
		t.Errorf("expected zero UUID for wrong type, got %s", got)
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	uniqueErr := &pgconn.PgError{Code: "23505", ConstraintName: "patients_tenant_id_cpf_key"}

	if !IsUniqueViolation(uniqueErr, "") {
		t.Error("expected unique violation with empty constraint filter")
	}
	if !IsUniqueViolation(uniqueErr, "patients_tenant_id_cpf_key") {
		t.Error("expected unique violation with matching constraint")
	}
	if IsUniqueViolation(uniqueErr, "patients_tenant_id_email_key") {
		t.Error("expected no match for different constraint name")
	}
}

func TestIsUniqueViolation_OtherErrors(t *testing.T) {
	if IsUniqueViolation(errors.New("plain error"), "") {
		t.Error("plain error should not be a unique violation")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Error("foreign key violation should not be a unique violation")
	}
	if IsUniqueViolation(nil, "") {
		t.Error("nil error should not be a unique violation")
	}
}

func TestIsUniqueViolation_Wrapped(t *testing.T) {
	inner := &pgconn.PgError{Code: "23505", ConstraintName: "tenants_slug_key"}
	wrapped := errors.Join(errors.New("insert tenant"), inner)

	if !IsUniqueViolation(wrapped, "tenants_slug_key") {
		t.Error("expected unique violation through wrapped error")
	}
}

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(pgx.ErrNoRows) {
		t.Error("pgx.ErrNoRows should be a not-found error")
	}
	if IsNotFound(errors.New("boom")) {
		t.Error("arbitrary error should not be a not-found error")
	}
	if IsNotFound(nil) {
		t.Error("nil should not be a not-found error")
	}
}
