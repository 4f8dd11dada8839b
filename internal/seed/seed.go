// Package seed inserts demo users, services, runbooks and one running
// incident into an empty database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/bissquit/incident-console/internal/identity"
	"github.com/jackc/pgx/v5"
)

// DemoPassword is the password of every seeded user.
const DemoPassword = "demo123"

// Beginner starts transactions. Satisfied by *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type demoUser struct {
	name     string
	username string
	role     domain.Role
}

type demoService struct {
	name      string
	ownerTeam string
	policy    domain.SLAPolicy
}

type demoRunbook struct {
	service int
	title   string
	steps   []string
}

var users = []demoUser{
	{name: "Avery Chen", username: "avery", role: domain.RoleEngineer},
	{name: "Jordan Patel", username: "jordan", role: domain.RoleIncidentCommander},
	{name: "Morgan Diaz", username: "morgan", role: domain.RoleManager},
}

var services = []demoService{
	{
		name:      "Payments API",
		ownerTeam: "Core Payments",
		policy:    domain.SLAPolicy{domain.SeveritySEV1: 1, domain.SeveritySEV2: 2, domain.SeveritySEV3: 6, domain.SeveritySEV4: 24},
	},
	{
		name:      "Identity Service",
		ownerTeam: "Platform Identity",
		policy:    domain.SLAPolicy{domain.SeveritySEV1: 1, domain.SeveritySEV2: 4, domain.SeveritySEV3: 8, domain.SeveritySEV4: 24},
	},
	{
		name:      "Order Pipeline",
		ownerTeam: "Fulfillment Ops",
		policy:    domain.SLAPolicy{domain.SeveritySEV1: 2, domain.SeveritySEV2: 4, domain.SeveritySEV3: 12, domain.SeveritySEV4: 24},
	},
}

var runbooks = []demoRunbook{
	{
		service: 0,
		title:   "Payments Timeout Mitigation",
		steps: []string{
			"Check p95 latency and error rate on API gateway dashboard",
			"Scale worker pool by +2 instances",
			"Enable retry backoff patch in feature flag console",
			"Purge stuck jobs older than 10 minutes",
		},
	},
	{
		service: 1,
		title:   "Identity Login Failure",
		steps: []string{
			"Validate OAuth provider health endpoints",
			"Rotate cached signing keys",
			"Flush auth gateway cache",
		},
	},
}

// Run seeds the database unless it already has users. Everything is
// inserted in one transaction. Returns true when data was inserted.
func Run(ctx context.Context, db Beginner) (seeded bool, err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			slog.Error("failed to rollback seed transaction", "error", rbErr)
		}
	}()

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := identity.HashPassword(DemoPassword)
	if err != nil {
		return false, err
	}

	userIDs := make([]int64, len(users))
	for i, u := range users {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (name, username, password_hash, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, u.name, u.username, hash, u.role).Scan(&userIDs[i])
		if err != nil {
			return false, fmt.Errorf("insert user %s: %w", u.username, err)
		}
	}

	serviceIDs := make([]int64, len(services))
	for i, s := range services {
		err := tx.QueryRow(ctx, `
			INSERT INTO services (name, owner_team, sla_policy)
			VALUES ($1, $2, $3)
			RETURNING id
		`, s.name, s.ownerTeam, s.policy).Scan(&serviceIDs[i])
		if err != nil {
			return false, fmt.Errorf("insert service %s: %w", s.name, err)
		}
	}

	for _, rb := range runbooks {
		_, err := tx.Exec(ctx, `
			INSERT INTO runbooks (service_id, title, steps)
			VALUES ($1, $2, $3)
		`, serviceIDs[rb.service], rb.title, rb.steps)
		if err != nil {
			return false, fmt.Errorf("insert runbook %s: %w", rb.title, err)
		}
	}

	now := time.Now().UTC()
	var incidentID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO incidents (title, description, severity, status, service_id, assignee_id, created_at, acknowledged_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`,
		"Spike in payment authorization timeouts",
		"Checkout requests are timing out in us-east-1.",
		domain.SeveritySEV2,
		domain.IncidentStatusInvestigating,
		serviceIDs[0],
		userIDs[1],
		now,
	).Scan(&incidentID)
	if err != nil {
		return false, fmt.Errorf("insert incident: %w", err)
	}

	events := []struct {
		eventType domain.EventType
		body      string
		createdBy int64
	}{
		{domain.EventTypeStatusChange, "Incident created with status New", userIDs[0]},
		{domain.EventTypeStatusChange, "Moved to Investigating", userIDs[1]},
		{domain.EventTypeComment, "Initial rollback did not improve latency.", userIDs[1]},
	}
	for _, e := range events {
		_, err := tx.Exec(ctx, `
			INSERT INTO incident_events (incident_id, type, body, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, incidentID, e.eventType, e.body, e.createdBy, now)
		if err != nil {
			return false, fmt.Errorf("insert incident event: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	slog.Info("demo data seeded",
		"users", len(users),
		"services", len(services),
		"runbooks", len(runbooks),
	)
	return true, nil
}
