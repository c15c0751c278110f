package ge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jg-phare/goat/pkg/ge/consensus"
	"github.com/jg-phare/goat/pkg/ge/worker"
)

type fakeChatter struct {
	response string
	err      error
}

func (f fakeChatter) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	return f.response, f.err
}

type fakeRunner struct {
	exitCode int
	output   string
}

func (f fakeRunner) Run(ctx context.Context, command string) (int, string, error) {
	return f.exitCode, f.output, nil
}

func TestNewEngine_StartsInterviewWhenNoConsensusFile(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(dir, fakeChatter{}, fakeChatter{}, fakeRunner{})
	require.Equal(t, worker.ModeGeInterview, e.Mode())
}

func TestNewEngine_ResumesRunWhenConsensusExists(t *testing.T) {
	dir := t.TempDir()
	doc := consensus.BuildFromInterview("ship the feature", "no force-push", "")
	require.NoError(t, consensus.Save(consensus.Path(dir), doc))

	e := NewEngine(dir, fakeChatter{}, fakeChatter{}, fakeRunner{})
	require.Equal(t, worker.ModeGeRun, e.Mode())
}

func TestHandleInterviewReply_AdvancesThroughFixedQuestions(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(dir, fakeChatter{err: context.DeadlineExceeded}, fakeChatter{err: context.DeadlineExceeded}, fakeRunner{})

	handled, lines, err := e.HandleInterviewReply(context.Background(), "ship the feature")
	require.NoError(t, err)
	require.True(t, handled)
	require.NotEmpty(t, lines)
	require.Equal(t, worker.ModeGeInterview, e.Mode())
}

func TestHandleInterviewReply_FallsBackToTemplateOnPlannerFailure(t *testing.T) {
	dir := t.TempDir()
	e := NewEngine(dir, fakeChatter{err: context.DeadlineExceeded}, fakeChatter{err: context.DeadlineExceeded}, fakeRunner{})

	_, _, err := e.HandleInterviewReply(context.Background(), "purpose")
	require.NoError(t, err)
	_, _, err = e.HandleInterviewReply(context.Background(), "rules")
	require.NoError(t, err)
	_, lines, err := e.HandleInterviewReply(context.Background(), "scope")
	require.NoError(t, err)
	require.Equal(t, worker.ModeGeRun, e.Mode())
	require.NotEmpty(t, lines)

	_, err = consensus.Load(consensus.Path(dir))
	require.NoError(t, err)
}

func TestTick_RunsOneTodoAndPersists(t *testing.T) {
	dir := t.TempDir()
	doc := consensus.BuildFromInterview("ship it", "be safe", "")
	require.NoError(t, consensus.Save(consensus.Path(dir), doc))

	execA := fakeChatter{response: "exit=0\nPASS"}
	revB := fakeChatter{response: "REVIEW: PASS"}
	e := NewEngine(dir, execA, revB, fakeRunner{exitCode: 0, output: "ok"})

	var lines []string
	require.NoError(t, e.Tick(context.Background(), func(s string) { lines = append(lines, s) }))
	require.NotEmpty(t, lines)

	reloaded, err := consensus.Load(consensus.Path(dir))
	require.NoError(t, err)
	require.Equal(t, len(doc.Todos), len(reloaded.Todos))
}

func TestTick_ReportsCompletionWhenAllDone(t *testing.T) {
	dir := t.TempDir()
	doc := consensus.BuildFromInterview("ship it", "be safe", "")
	for i := range doc.Todos {
		doc.Todos[i].Checked = true
	}
	require.NoError(t, consensus.Save(consensus.Path(dir), doc))

	e := NewEngine(dir, fakeChatter{}, fakeChatter{}, fakeRunner{})
	var lines []string
	require.NoError(t, e.Tick(context.Background(), func(s string) { lines = append(lines, s) }))
	require.Equal(t, worker.ModeGeIdle, e.Mode())
	require.NotEmpty(t, lines)
}

func TestExit_ReportsTodoCount(t *testing.T) {
	dir := t.TempDir()
	doc := consensus.BuildFromInterview("ship it", "be safe", "")
	doc.Todos[0].Checked = true
	require.NoError(t, consensus.Save(consensus.Path(dir), doc))

	e := NewEngine(dir, fakeChatter{}, fakeChatter{}, fakeRunner{})
	lines := e.Exit()
	require.Len(t, lines, 1)
}

func TestEngine_ConsensusPathUsesCWD(t *testing.T) {
	dir := t.TempDir()
	doc := consensus.BuildFromInterview("x", "y", "")
	require.NoError(t, consensus.Save(consensus.Path(dir), doc))
	require.FileExists(t, filepath.Join(dir, consensus.FileName))
}
