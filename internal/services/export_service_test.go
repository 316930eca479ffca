package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/edupulse/assessment-delivery/internal/utils"
)

func exportFixture(t *testing.T) (*serviceFixture, ExportService, string) {
	t.Helper()
	f := newServiceFixture(t)
	f.assessments.On("GetAssessment", mock.Anything, uint(10)).Return(testAssessment(10), nil)

	view, err := f.service.StartSession(context.Background(), StartSessionRequest{
		AssessmentID: 10,
		StudentID:    "student-1",
	})
	require.NoError(t, err)

	require.NoError(t, f.service.SaveAnswer(context.Background(), view.SessionID, 1,
		[]byte(`{"selected_options":["a"]}`)))
	require.NoError(t, f.service.SaveAnswer(context.Background(), view.SessionID, 2,
		[]byte(`{"text":"42"}`)))

	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f, NewExportService(f.service, logger), view.SessionID
}

func TestExportService_CSV(t *testing.T) {
	_, exporter, sessionID := exportFixture(t)

	data, err := exporter.ExportSessionToCSV(context.Background(), sessionID)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus one row per question")

	assert.Equal(t, exportHeaders, records[0])

	// Choice answer renders the option label, not the id.
	assert.Equal(t, "1", records[1][0])
	assert.Equal(t, "single_choice", records[1][2])
	assert.Equal(t, "yes", records[1][5])
	assert.Equal(t, "A", records[1][6])

	assert.Equal(t, "short_answer", records[2][2])
	assert.Equal(t, "42", records[2][6])
}

func TestExportService_Excel(t *testing.T) {
	_, exporter, sessionID := exportFixture(t)

	data, err := exporter.ExportSessionToExcel(context.Background(), sessionID)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Session Report")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
}

func TestExportService_UnknownSession(t *testing.T) {
	f := newServiceFixture(t)
	logger := utils.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	exporter := NewExportService(f.service, logger)

	_, err := exporter.ExportSessionToCSV(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
