package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keepsake/internal/kv"
	"github.com/roach88/keepsake/internal/quiz"
)

// seedDB writes one message answer and one graded journey response.
func seedDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "answers.db")

	st, err := kv.OpenSQLite(path)
	require.NoError(t, err)
	defer st.Close()

	q := quiz.New(st)
	q.SaveAnswer(ctx, "msg-1", "Sam")
	correct := true
	q.SaveJourneyResponse(ctx, quiz.JourneyResponse{
		JourneyID:  "first-date",
		StepID:     "drink",
		StorageKey: "first-date.drink",
		Answer:     "Hot chocolate",
		IsCorrect:  &correct,
	})
	q.RefreshStats(ctx)
	return path
}

func sqliteOpts(format, db string) *RootOptions {
	return &RootOptions{Format: format, Store: "sqlite", DB: db}
}

func TestAnswersEmpty(t *testing.T) {
	out, err := execute(t, NewAnswersCommand(textOpts()))
	require.NoError(t, err)
	assert.Contains(t, out, "No answers in memory store.")
}

func TestAnswersText(t *testing.T) {
	out, err := execute(t, NewAnswersCommand(sqliteOpts("text", seedDB(t))))
	require.NoError(t, err)
	assert.Contains(t, out, "Who said it:")
	assert.Contains(t, out, "msg-1")
	assert.Contains(t, out, "first-date.drink")
	assert.Contains(t, out, "Hot chocolate ✓")
	assert.Contains(t, out, "Answered 1, correct 1 of 1 graded (100%)")
}

func TestAnswersJSON(t *testing.T) {
	out, err := execute(t, NewAnswersCommand(sqliteOpts("json", seedDB(t))))
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   AnswersResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "sqlite", resp.Data.Store)
	require.Len(t, resp.Data.Answers, 1)
	assert.Equal(t, "Sam", resp.Data.Answers[0].Answer)
	require.Len(t, resp.Data.Responses, 1)
	require.NotNil(t, resp.Data.Stats)
	assert.Equal(t, 1, resp.Data.Stats.Correct)
}

func TestAnswersClear(t *testing.T) {
	db := seedDB(t)

	out, err := execute(t, NewAnswersCommand(sqliteOpts("text", db)), "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Cleared 3 record(s) from sqlite store")

	out, err = execute(t, NewAnswersCommand(sqliteOpts("text", db)))
	require.NoError(t, err)
	assert.Contains(t, out, "No answers in sqlite store.")
}

func TestAnswersStoreUnavailable(t *testing.T) {
	opts := sqliteOpts("text", filepath.Join(t.TempDir(), "missing", "dir", "answers.db"))
	_, err := execute(t, NewAnswersCommand(opts))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
