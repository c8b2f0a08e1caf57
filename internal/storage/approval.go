package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Approval statuses shared between the standalone MCP process and the GUI.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Approval is a destructive MCP action waiting for the user.
type Approval struct {
	ID          string    `json:"id"`
	Tool        string    `json:"tool"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Metadata    string    `json:"metadata"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ApprovalStore is the cross-process channel for MCP approvals: the
// standalone server inserts and polls, the GUI lists and resolves.
type ApprovalStore struct {
	db *DB
}

func NewApprovalStore(db *DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

func (s *ApprovalStore) Create(a *Approval) error {
	if a.Status == "" {
		a.Status = ApprovalPending
	}
	a.CreatedAt = time.Now().UTC()
	_, err := s.db.exec(
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.Tool, a.Description, a.Status, a.Metadata, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}

// Status returns the approval's status, or ErrNotFound once it was removed.
func (s *ApprovalStore) Status(id string) (string, error) {
	var status string
	err := s.db.queryRow(`SELECT status FROM mcp_approvals WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get approval: %w", err)
	}
	return status, nil
}

// Resolve records the user's answer for a pending approval.
func (s *ApprovalStore) Resolve(id string, approved bool) error {
	status := ApprovalRejected
	if approved {
		status = ApprovalApproved
	}
	res, err := s.db.exec(
		`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = ?`,
		status, id, ApprovalPending,
	)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("approval %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *ApprovalStore) ListPending() ([]Approval, error) {
	rows, err := s.db.query(
		`SELECT id, tool, description, status, metadata, created_at
		 FROM mcp_approvals WHERE status = ? ORDER BY created_at ASC`,
		ApprovalPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		var a Approval
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &a.Status, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ApprovalStore) Delete(id string) error {
	_, err := s.db.exec(`DELETE FROM mcp_approvals WHERE id = ?`, id)
	return err
}
