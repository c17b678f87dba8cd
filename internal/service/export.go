package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"wisefido-casebook/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportFile 导出文件
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

var sessionExportHeader = []string{
	"Session Date",
	"Presenting Topics",
	"Therapist Observations",
	"Client Affect",
	"Interventions Used",
	"Progress Notes",
	"Created At",
}

// Export 病例导出为 xlsx（Intake + Sessions 两个 sheet），权限同详情
func (s *caseHistoryService) Export(ctx context.Context, id domain.Identity, caseID string) (*ExportFile, error) {
	c, err := s.Get(ctx, id, caseID)
	if err != nil {
		return nil, err
	}
	data, err := generateCaseWorkbook(c)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Case history exported",
		zap.String("case_history_id", c.ID),
		zap.String("user_id", id.UserID),
		zap.String("role", id.Role.String()),
	)
	return &ExportFile{
		Filename:    fmt.Sprintf("case-history-%s.xlsx", c.ID),
		ContentType: xlsxContentType,
		Data:        data,
	}, nil
}

func generateCaseWorkbook(c *domain.CaseHistory) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const intakeSheet, sessionSheet = "Intake", "Sessions"
	if err := f.SetSheetName("Sheet1", intakeSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(sessionSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// Intake: 字段/值 两列
	rows := [][]any{
		{"Field", "Value"},
		{"Case History ID", c.ID},
		{"Client", partyLabel(c.Client)},
		{"Provider", partyLabel(c.Provider)},
		{"Created At", formatTime(c.CreatedAt)},
	}
	if lc := c.Lifecycle; lc != nil {
		rows = append(rows, []any{"Stage", string(lc.Stage())})
	}
	if form := c.IntakeForm; form != nil {
		rows = append(rows,
			[]any{"Presenting Problem", deref(form.PresentingProblem)},
			[]any{"Medical History", deref(form.MedicalHistory)},
			[]any{"Mental Health History", deref(form.MentalHealthHistory)},
			[]any{"Medications", deref(form.Medications)},
			[]any{"Consent Acknowledged", form.ConsentAcknowledged},
			[]any{"Free Text Notes", deref(form.FreeTextNotes)},
			[]any{"Provider Notes", deref(form.ProviderNotes)},
			[]any{"Submitted At", formatTime(form.SubmittedAt)},
		)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(intakeSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write intake row %d: %w", i+1, err)
		}
	}
	if err := f.SetCellStyle(intakeSheet, "A1", "B1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(intakeSheet, "A", "A", 24); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(intakeSheet, "B", "B", 80); err != nil {
		return nil, err
	}

	// Sessions: 一行一条，最新在前
	if err := f.SetSheetRow(sessionSheet, "A1", &sessionExportHeader); err != nil {
		return nil, fmt.Errorf("failed to write session header: %w", err)
	}
	for i, l := range c.SessionLogs {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{
			formatTime(l.SessionDate),
			deref(l.PresentingTopics),
			deref(l.TherapistObservations),
			deref(l.ClientAffect),
			deref(l.InterventionsUsed),
			deref(l.ProgressNotes),
			formatTime(l.CreatedAt),
		}
		if err := f.SetSheetRow(sessionSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write session row %d: %w", i+2, err)
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(sessionExportHeader))
	if err := f.SetCellStyle(sessionSheet, "A1", lastCol+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	if err := f.SetColWidth(sessionSheet, "A", lastCol, 24); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func partyLabel(p *domain.CaseParty) string {
	if p == nil {
		return ""
	}
	var first, last *string
	switch {
	case p.ClientProfile != nil:
		first, last = p.ClientProfile.FirstName, p.ClientProfile.LastName
	case p.ProviderProfile != nil:
		first, last = p.ProviderProfile.FirstName, p.ProviderProfile.LastName
	}
	name := deref(first)
	if l := deref(last); l != "" {
		if name != "" {
			name += " "
		}
		name += l
	}
	if name == "" {
		return p.Email
	}
	return fmt.Sprintf("%s <%s>", name, p.Email)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
