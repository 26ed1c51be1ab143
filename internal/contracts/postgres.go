package contracts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lancehub-io/lancehub/internal/models"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, so one store type
// serves pooled and transactional access.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store on top of pgx.
type PostgresStore struct {
	q pgQuerier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{q: pool}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.q.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&PostgresStore{q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.q.QueryRow(ctx, `
		SELECT id, username, full_name, user_type, balance, bio, avatar_url, language, music_data, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.FullName, &u.UserType, &u.Balance,
		&u.Bio, &u.AvatarURL, &u.Language, &u.MusicData, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) DebitBalance(ctx context.Context, userID string, amount int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET balance = balance - $1 WHERE id = $2 AND balance >= $1`,
		amount, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (s *PostgresStore) CreditBalance(ctx context.Context, userID string, amount int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const contractColumns = `id, buyer_id, seller_id, job_id, service_id, title, contract_type,
	status, amount, description, attachments, currency, created_at, updated_at`

func scanContract(row pgx.Row) (*models.Contract, error) {
	var ct models.Contract
	err := row.Scan(&ct.ID, &ct.BuyerID, &ct.SellerID, &ct.JobID, &ct.ServiceID, &ct.Title,
		&ct.ContractType, &ct.Status, &ct.Amount, &ct.Description, &ct.Attachments,
		&ct.Currency, &ct.CreatedAt, &ct.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

func (s *PostgresStore) InsertContract(ctx context.Context, ct *models.Contract) error {
	if ct.Attachments == nil {
		ct.Attachments = []string{}
	}
	err := s.q.QueryRow(ctx, `
		INSERT INTO contracts (id, buyer_id, seller_id, job_id, service_id, title,
			contract_type, status, amount, description, attachments, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, ct.ID, ct.BuyerID, ct.SellerID, ct.JobID, ct.ServiceID, ct.Title,
		ct.ContractType, ct.Status, ct.Amount, ct.Description, ct.Attachments, ct.Currency).
		Scan(&ct.CreatedAt, &ct.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrContractExists
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetContract(ctx context.Context, id string) (*models.Contract, error) {
	return scanContract(s.q.QueryRow(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
}

func (s *PostgresStore) UpdateContract(ctx context.Context, id string, patch ContractPatch) (*models.Contract, error) {
	var status *string
	if patch.Status != nil {
		v := string(*patch.Status)
		status = &v
	}
	return scanContract(s.q.QueryRow(ctx, `
		UPDATE contracts SET
			title       = COALESCE($1, title),
			description = COALESCE($2, description),
			amount      = COALESCE($3, amount),
			status      = COALESCE($4, status),
			attachments = COALESCE($5, attachments),
			updated_at  = NOW()
		WHERE id = $6
		RETURNING `+contractColumns,
		patch.Title, patch.Description, patch.Amount, status, patch.Attachments, id))
}

func (s *PostgresStore) ListContracts(ctx context.Context, userID string) ([]models.Contract, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+contractColumns+` FROM contracts
		WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		ct, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ct)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertMilestone(ctx context.Context, m *models.Milestone) error {
	return s.q.QueryRow(ctx, `
		INSERT INTO contract_milestones (id, contract_id, description, due_date, amount, status, sequence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, m.ID, m.ContractID, m.Description, m.DueDate, m.Amount, m.Status, m.Sequence).
		Scan(&m.CreatedAt, &m.UpdatedAt)
}

func (s *PostgresStore) GetMilestone(ctx context.Context, id string) (*models.Milestone, error) {
	var m models.Milestone
	err := s.q.QueryRow(ctx, `
		SELECT id, contract_id, description, due_date, amount, status, sequence, created_at, updated_at
		FROM contract_milestones WHERE id = $1
	`, id).Scan(&m.ID, &m.ContractID, &m.Description, &m.DueDate, &m.Amount,
		&m.Status, &m.Sequence, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) TransitionMilestone(ctx context.Context, id string, from []models.MilestoneStatus, to models.MilestoneStatus) (bool, error) {
	fromStr := make([]string, len(from))
	for i, st := range from {
		fromStr[i] = string(st)
	}
	tag, err := s.q.Exec(ctx, `
		UPDATE contract_milestones SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`, to, id, fromStr)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) MilestonesByContract(ctx context.Context, contractID string) ([]models.Milestone, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, contract_id, description, due_date, amount, status, sequence, created_at, updated_at
		FROM contract_milestones WHERE contract_id = $1 ORDER BY sequence, created_at
	`, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Milestone
	for rows.Next() {
		var m models.Milestone
		if err := rows.Scan(&m.ID, &m.ContractID, &m.Description, &m.DueDate, &m.Amount,
			&m.Status, &m.Sequence, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MilestoneTotals(ctx context.Context, userID, role string) (map[models.MilestoneStatus]int64, error) {
	column := "buyer_id"
	if role == "seller" {
		column = "seller_id"
	}
	rows, err := s.q.Query(ctx, `
		SELECT m.status, COALESCE(SUM(m.amount), 0)
		FROM contract_milestones m
		JOIN contracts c ON c.id = m.contract_id
		WHERE c.`+column+` = $1
		GROUP BY m.status
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[models.MilestoneStatus]int64)
	for rows.Next() {
		var status models.MilestoneStatus
		var sum int64
		if err := rows.Scan(&status, &sum); err != nil {
			return nil, err
		}
		totals[status] = sum
	}
	return totals, rows.Err()
}

func (s *PostgresStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	err := s.q.QueryRow(ctx, `
		SELECT id, buyer_id, title, description, budget, status, currency, skill_levels, files, created_at
		FROM jobs WHERE id = $1
	`, id).Scan(&j.ID, &j.BuyerID, &j.Title, &j.Description, &j.Budget,
		&j.Status, &j.Currency, &j.SkillLevels, &j.Files, &j.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) SetJobStatus(ctx context.Context, jobID string, status models.JobStatus) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE jobs SET status = $1 WHERE id = $2`, status, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	var ch models.Chat
	err := s.q.QueryRow(ctx, `
		SELECT id, buyer_id, seller_id, contract_id, created_at FROM chats WHERE id = $1
	`, id).Scan(&ch.ID, &ch.BuyerID, &ch.SellerID, &ch.ContractID, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *PostgresStore) FindOrCreateChat(ctx context.Context, buyerID, sellerID string, contractID *string) (*models.Chat, error) {
	find := func() (*models.Chat, error) {
		var ch models.Chat
		var err error
		if contractID == nil {
			err = s.q.QueryRow(ctx, `
				SELECT id, buyer_id, seller_id, contract_id, created_at FROM chats
				WHERE buyer_id = $1 AND seller_id = $2 AND contract_id IS NULL
			`, buyerID, sellerID).Scan(&ch.ID, &ch.BuyerID, &ch.SellerID, &ch.ContractID, &ch.CreatedAt)
		} else {
			err = s.q.QueryRow(ctx, `
				SELECT id, buyer_id, seller_id, contract_id, created_at FROM chats
				WHERE buyer_id = $1 AND seller_id = $2 AND contract_id = $3
			`, buyerID, sellerID, *contractID).Scan(&ch.ID, &ch.BuyerID, &ch.SellerID, &ch.ContractID, &ch.CreatedAt)
		}
		if err != nil {
			return nil, err
		}
		return &ch, nil
	}

	ch, err := find()
	if err == nil {
		return ch, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	created := models.Chat{ID: newUUID(), BuyerID: buyerID, SellerID: sellerID, ContractID: contractID}
	err = s.q.QueryRow(ctx, `
		INSERT INTO chats (id, buyer_id, seller_id, contract_id)
		VALUES ($1, $2, $3, $4) RETURNING created_at
	`, created.ID, created.BuyerID, created.SellerID, created.ContractID).Scan(&created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// lost the race to a concurrent opener, the chat exists now
			return find()
		}
		return nil, err
	}
	return &created, nil
}

func (s *PostgresStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	return s.q.QueryRow(ctx, `
		INSERT INTO messages (id, chat_id, sender_id, content, message_type, data, read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.MessageType, msg.Data, msg.Read).
		Scan(&msg.CreatedAt)
}

func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := s.q.QueryRow(ctx, `
		SELECT id, chat_id, sender_id, content, message_type, data, read, created_at
		FROM messages WHERE id = $1
	`, id).Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MessageType, &m.Data, &m.Read, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *PostgresStore) PatchMessageStatus(ctx context.Context, messageID, from, to string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE messages SET data = jsonb_set(data, '{status}', to_jsonb($1::text))
		WHERE id = $2 AND data->>'status' = $3
	`, to, messageID, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RecordTransaction(ctx context.Context, t *models.Transaction) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO transactions (id, user_id, amount, type, status, reference)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid)
	`, t.ID, t.UserID, t.Amount, t.Type, t.Status, t.Reference)
	return err
}
