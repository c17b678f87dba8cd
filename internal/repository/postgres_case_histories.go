package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"wisefido-casebook/internal/domain"
	"wisefido-casebook/owl-common/database"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PostgresCaseHistoriesRepository 病例Repository实现
type PostgresCaseHistoriesRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

func NewPostgresCaseHistoriesRepository(db *sql.DB, logger *zap.Logger) *PostgresCaseHistoriesRepository {
	return &PostgresCaseHistoriesRepository{db: db, logger: logger, now: utcNow}
}

var _ CaseHistoriesRepository = (*PostgresCaseHistoriesRepository)(nil)

const selectCaseWithIntake = `
	SELECT
		ch.id::text,
		ch.client_id::text,
		ch.provider_id::text,
		ch.created_at,
		ch.updated_at,
		f.id::text,
		f.presenting_problem,
		f.medical_history,
		f.mental_health_history,
		f.medications,
		f.consent_acknowledged,
		f.free_text_notes,
		f.provider_notes,
		f.submitted_at,
		f.updated_at
	FROM case_histories ch
	LEFT JOIN intake_forms f ON f.case_history_id = ch.id
`

const intakeColumns = `
	id::text, presenting_problem, medical_history, mental_health_history, medications,
	consent_acknowledged, free_text_notes, provider_notes, submitted_at, updated_at
`

const sessionLogColumns = `
	id::text, case_history_id::text, provider_id::text, client_id::text, session_date,
	presenting_topics, therapist_observations, client_affect, interventions_used,
	progress_notes, created_at, updated_at
`

// CreateCaseWithIntake 事务内选 provider 并写 case_histories + intake_forms
func (r *PostgresCaseHistoriesRepository) CreateCaseWithIntake(ctx context.Context, clientID string, in domain.IntakeSubmission) (*domain.CaseHistory, error) {
	now := r.now()
	c := &domain.CaseHistory{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	form := &domain.IntakeForm{
		ID:                  uuid.NewString(),
		CaseHistoryID:       c.ID,
		PresentingProblem:   in.PresentingProblem,
		MedicalHistory:      in.MedicalHistory,
		MentalHealthHistory: in.MentalHealthHistory,
		Medications:         in.Medications,
		ConsentAcknowledged: in.ConsentAcknowledged,
		FreeTextNotes:       in.FreeTextNotes,
		SubmittedAt:         now,
		UpdatedAt:           now,
	}

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// 占位策略：最早注册的 provider
		err := tx.QueryRowContext(ctx,
			`SELECT id::text FROM users WHERE role = 'PROVIDER' ORDER BY created_at, id LIMIT 1`,
		).Scan(&c.ProviderID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNoProviderAvailable
		}
		if err != nil {
			return fmt.Errorf("failed to select provider: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO case_histories (id, client_id, provider_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.ClientID, c.ProviderID, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert case history: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO intake_forms (
				id, case_history_id, presenting_problem, medical_history, mental_health_history,
				medications, consent_acknowledged, free_text_notes, submitted_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			form.ID, form.CaseHistoryID, form.PresentingProblem, form.MedicalHistory, form.MentalHealthHistory,
			form.Medications, form.ConsentAcknowledged, form.FreeTextNotes, form.SubmittedAt, form.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert intake form: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.IntakeForm = form
	r.logger.Debug("Case history created",
		zap.String("case_history_id", c.ID),
		zap.String("client_id", c.ClientID),
		zap.String("provider_id", c.ProviderID),
	)
	return c, nil
}

func (r *PostgresCaseHistoriesRepository) GetCaseHistory(ctx context.Context, caseID string) (*domain.CaseHistory, error) {
	if !validID(caseID) {
		return nil, domain.ErrNotFound
	}
	c, err := scanCaseWithIntake(r.db.QueryRowContext(ctx, selectCaseWithIntake+` WHERE ch.id = $1`, caseID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case history: %w", err)
	}
	return c, nil
}

func (r *PostgresCaseHistoriesRepository) GetCaseHistoryDetail(ctx context.Context, caseID string) (*domain.CaseHistory, error) {
	c, err := r.GetCaseHistory(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := r.attachDetails(ctx, []*domain.CaseHistory{c}); err != nil {
		return nil, err
	}
	return c, nil
}

// ListCaseHistories 按 owner 列过滤，created_at 倒序
func (r *PostgresCaseHistoriesRepository) ListCaseHistories(ctx context.Context, filter domain.OwnerFilter) ([]*domain.CaseHistory, error) {
	var where, arg string
	switch {
	case filter.ClientID != "" && filter.ProviderID == "":
		where, arg = ` WHERE ch.client_id = $1`, filter.ClientID
	case filter.ProviderID != "" && filter.ClientID == "":
		where, arg = ` WHERE ch.provider_id = $1`, filter.ProviderID
	default:
		return nil, fmt.Errorf("owner filter must name exactly one participant")
	}
	if !validID(arg) {
		return []*domain.CaseHistory{}, nil
	}

	rows, err := r.db.QueryContext(ctx, selectCaseWithIntake+where+` ORDER BY ch.created_at DESC, ch.id`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list case histories: %w", err)
	}
	defer rows.Close()

	out := []*domain.CaseHistory{}
	for rows.Next() {
		c, err := scanCaseWithIntake(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case history: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list case histories: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}
	if err := r.attachDetails(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProviderNotes nil notes leaves the stored value untouched but still bumps updated_at.
func (r *PostgresCaseHistoriesRepository) UpdateProviderNotes(ctx context.Context, caseID string, notes *string) (*domain.IntakeForm, error) {
	if !validID(caseID) {
		return nil, domain.ErrNotFound
	}
	now := r.now()
	var form *domain.IntakeForm

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		f, err := scanIntake(tx.QueryRowContext(ctx,
			`UPDATE intake_forms
			 SET provider_notes = COALESCE($2, provider_notes), updated_at = $3
			 WHERE case_history_id = $1
			 RETURNING `+intakeColumns,
			caseID, notes, now,
		))
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update provider notes: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE case_histories SET updated_at = $2 WHERE id = $1`, caseID, now,
		); err != nil {
			return fmt.Errorf("failed to touch case history: %w", err)
		}
		f.CaseHistoryID = caseID
		form = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return form, nil
}

// CreateSessionLog 只追加；同时刷新病例 updated_at
func (r *PostgresCaseHistoriesRepository) CreateSessionLog(ctx context.Context, c *domain.CaseHistory, notes domain.SessionNotes) (*domain.SessionLog, error) {
	now := r.now()
	log := &domain.SessionLog{
		ID:                    uuid.NewString(),
		CaseHistoryID:         c.ID,
		ProviderID:            c.ProviderID,
		ClientID:              c.ClientID,
		SessionDate:           now,
		PresentingTopics:      notes.PresentingTopics,
		TherapistObservations: notes.TherapistObservations,
		ClientAffect:          notes.ClientAffect,
		InterventionsUsed:     notes.InterventionsUsed,
		ProgressNotes:         notes.ProgressNotes,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if notes.SessionDate != nil {
		log.SessionDate = notes.SessionDate.UTC()
	}

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_logs (
				id, case_history_id, provider_id, client_id, session_date, presenting_topics,
				therapist_observations, client_affect, interventions_used, progress_notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			log.ID, log.CaseHistoryID, log.ProviderID, log.ClientID, log.SessionDate, log.PresentingTopics,
			log.TherapistObservations, log.ClientAffect, log.InterventionsUsed, log.ProgressNotes, log.CreatedAt, log.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert session log: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE case_histories SET updated_at = $2 WHERE id = $1`, c.ID, now,
		); err != nil {
			return fmt.Errorf("failed to touch case history: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (r *PostgresCaseHistoriesRepository) ListSessionLogs(ctx context.Context, caseID string) ([]*domain.SessionLog, error) {
	if !validID(caseID) {
		return []*domain.SessionLog{}, nil
	}
	byCase, err := r.sessionLogsFor(ctx, []string{caseID})
	if err != nil {
		return nil, err
	}
	logs := byCase[caseID]
	if logs == nil {
		logs = []*domain.SessionLog{}
	}
	return logs, nil
}

// attachDetails loads participants and session logs for cases in two batched queries each.
func (r *PostgresCaseHistoriesRepository) attachDetails(ctx context.Context, cases []*domain.CaseHistory) error {
	ids := make([]string, 0, len(cases))
	userIDs := make([]string, 0, 2*len(cases))
	seen := map[string]bool{}
	for _, c := range cases {
		ids = append(ids, c.ID)
		for _, uid := range []string{c.ClientID, c.ProviderID} {
			if !seen[uid] {
				seen[uid] = true
				userIDs = append(userIDs, uid)
			}
		}
	}

	users, err := r.usersByID(ctx, userIDs)
	if err != nil {
		return err
	}
	logs, err := r.sessionLogsFor(ctx, ids)
	if err != nil {
		return err
	}
	for _, c := range cases {
		c.Client = domain.PartyOf(users[c.ClientID])
		c.Provider = domain.PartyOf(users[c.ProviderID])
		c.SessionLogs = logs[c.ID]
		if c.SessionLogs == nil {
			c.SessionLogs = []*domain.SessionLog{}
		}
	}
	return nil
}

func (r *PostgresCaseHistoriesRepository) usersByID(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUserWithProfile+` WHERE u.id = ANY($1::uuid[])`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load case participants: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.User, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case participant: %w", err)
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}

func (r *PostgresCaseHistoriesRepository) sessionLogsFor(ctx context.Context, caseIDs []string) (map[string][]*domain.SessionLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionLogColumns+` FROM session_logs
		 WHERE case_history_id = ANY($1::uuid[])
		 ORDER BY session_date DESC, created_at DESC`,
		pq.Array(caseIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list session logs: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]*domain.SessionLog, len(caseIDs))
	for rows.Next() {
		l, err := scanSessionLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session log: %w", err)
		}
		out[l.CaseHistoryID] = append(out[l.CaseHistoryID], l)
	}
	return out, rows.Err()
}

func scanCaseWithIntake(row rowScanner) (*domain.CaseHistory, error) {
	var c domain.CaseHistory
	var formID sql.NullString
	var presenting, medical, mental, meds, freeText, providerNotes sql.NullString
	var consent sql.NullBool
	var submittedAt, formUpdatedAt sql.NullTime

	if err := row.Scan(
		&c.ID, &c.ClientID, &c.ProviderID, &c.CreatedAt, &c.UpdatedAt,
		&formID, &presenting, &medical, &mental, &meds,
		&consent, &freeText, &providerNotes, &submittedAt, &formUpdatedAt,
	); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	if formID.Valid {
		c.IntakeForm = &domain.IntakeForm{
			ID:                  formID.String,
			CaseHistoryID:       c.ID,
			PresentingProblem:   nullStringPtr(presenting),
			MedicalHistory:      nullStringPtr(medical),
			MentalHealthHistory: nullStringPtr(mental),
			Medications:         nullStringPtr(meds),
			ConsentAcknowledged: consent.Valid && consent.Bool,
			FreeTextNotes:       nullStringPtr(freeText),
			ProviderNotes:       nullStringPtr(providerNotes),
			SubmittedAt:         submittedAt.Time.UTC(),
			UpdatedAt:           formUpdatedAt.Time.UTC(),
		}
	}
	return &c, nil
}

func scanIntake(row rowScanner) (*domain.IntakeForm, error) {
	var f domain.IntakeForm
	var presenting, medical, mental, meds, freeText, providerNotes sql.NullString
	if err := row.Scan(
		&f.ID, &presenting, &medical, &mental, &meds,
		&f.ConsentAcknowledged, &freeText, &providerNotes, &f.SubmittedAt, &f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	f.PresentingProblem = nullStringPtr(presenting)
	f.MedicalHistory = nullStringPtr(medical)
	f.MentalHealthHistory = nullStringPtr(mental)
	f.Medications = nullStringPtr(meds)
	f.FreeTextNotes = nullStringPtr(freeText)
	f.ProviderNotes = nullStringPtr(providerNotes)
	f.SubmittedAt = f.SubmittedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return &f, nil
}

func scanSessionLog(row rowScanner) (*domain.SessionLog, error) {
	var l domain.SessionLog
	var topics, observations, affect, interventions, progress sql.NullString
	if err := row.Scan(
		&l.ID, &l.CaseHistoryID, &l.ProviderID, &l.ClientID, &l.SessionDate,
		&topics, &observations, &affect, &interventions,
		&progress, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.PresentingTopics = nullStringPtr(topics)
	l.TherapistObservations = nullStringPtr(observations)
	l.ClientAffect = nullStringPtr(affect)
	l.InterventionsUsed = nullStringPtr(interventions)
	l.ProgressNotes = nullStringPtr(progress)
	l.SessionDate = l.SessionDate.UTC()
	l.CreatedAt = l.CreatedAt.UTC()
	l.UpdatedAt = l.UpdatedAt.UTC()
	return &l, nil
}
