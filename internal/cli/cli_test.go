package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"UrbanPull/internal/domain/models"
	drepo "UrbanPull/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	got *models.Indicator
}

func (s *stubSource) Fetch(_ context.Context, ind *models.Indicator) (*models.IndicatorSnapshot, error) {
	s.got = ind
	return &models.IndicatorSnapshot{
		Indicator: ind.Indicator,
		Payload:   json.RawMessage(`{"value":4.2}`),
		FetchedAt: time.Now(),
	}, nil
}

func (s *stubSource) FetchFresh(ctx context.Context, ind *models.Indicator) (*models.IndicatorSnapshot, error) {
	return s.Fetch(ctx, ind)
}

func run(t *testing.T, open SourceFactory, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand("test", open)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func never(t *testing.T) SourceFactory {
	return func(string) (drepo.IndicatorSource, error) {
		t.Fatal("source must not be opened")
		return nil, nil
	}
}

func TestIndicatorPrintsPayload(t *testing.T) {
	src := &stubSource{}
	var gotPath string
	open := func(path string) (drepo.IndicatorSource, error) {
		gotPath = path
		return src, nil
	}

	out, err := run(t, open, "indicator", "--indicator", "o_pu", "--admin-level", "4", "--category", "P", "--config", "x.yaml")
	require.NoError(t, err)
	assert.Equal(t, "x.yaml", gotPath)
	assert.JSONEq(t, `{"value":4.2}`, out)
	assert.Equal(t, "P", src.got.Taxonomy)
}

func TestIndicatorCountryLevelIsPresent(t *testing.T) {
	src := &stubSource{}
	_, err := run(t, func(string) (drepo.IndicatorSource, error) { return src, nil },
		"indicator", "--indicator", "r_g", "--admin-level", "0", "--period", "2017Q2")
	require.NoError(t, err)

	level, ok := src.got.AdminLevelValue()
	assert.True(t, ok)
	assert.Equal(t, models.AdminLevelCountry, level)
}

func TestIndicatorMissingFieldsFailBeforeIO(t *testing.T) {
	_, err := run(t, never(t), "indicator", "--indicator", "s_p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMissingMandatoryField))
	assert.Contains(t, err.Error(), "missing required field(s)")
	assert.Contains(t, err.Error(), models.ParamAdminLevel)

	_, err = run(t, never(t), "indicator")
	require.Error(t, err)
	var missing *models.MissingFieldsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{models.ParamIndicator, models.ParamAdminLevel}, missing.Fields)
}

func TestIndicatorTaxonomyConflict(t *testing.T) {
	_, err := run(t, never(t), "indicator", "--indicator", "s_p", "--admin-level", "3", "--taxonomy", "P", "--category", "Q")
	assert.ErrorIs(t, err, models.ErrTaxonomyConflict)
}

func TestDryRun(t *testing.T) {
	out, err := run(t, never(t), "indicator", "--indicator", "r_g", "--admin-level", "0", "--period", "2017Q2", "--dry-run")
	require.NoError(t, err)

	var report dryRunReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Valid)
	assert.Empty(t, report.Missing)
	assert.Equal(t, "admin_level=0&indicator=r_g&period=2017Q2", report.Query)

	out, err = run(t, never(t), "indicator", "--period", "2017Q2", "--dry-run")
	require.Error(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Valid)
	assert.Equal(t, []string{"indicator", "admin_level"}, report.Missing)
}

func TestCatalog(t *testing.T) {
	out, err := run(t, never(t), "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "s_fn")
	assert.Contains(t, out, "neighborhood")

	out, err = run(t, never(t), "catalog", "--json")
	require.NoError(t, err)
	var body struct {
		Indicators []models.IndicatorInfo `json:"indicators"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Len(t, body.Indicators, len(models.Catalog()))
}
