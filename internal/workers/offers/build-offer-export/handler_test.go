package buildofferexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "college-predictor/internal/common/errors"
	"college-predictor/internal/common/logger"
	"college-predictor/internal/cutoff"
	"college-predictor/internal/dataset"
)

// ==========================
// Test Helper Functions
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	activatedJob := &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "offer-export",
		ElementId:          "Activity_BuildOfferExport",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}

	return entities.Job{ActivatedJob: activatedJob}
}

// createLargeDataset spreads n distinct colleges over the rounds, cutoff 1000+i in round i%3.
func createLargeDataset(n int) *dataset.Memory {
	mem := dataset.NewMemory()
	for i := 0; i < n; i++ {
		mem.Add(cutoff.Rounds[i%3], dataset.Row{
			Institution: fmt.Sprintf("College %02d", i),
			Program:     "CS Computers",
			Cutoffs:     map[string]string{"GM": strconv.Itoa(1000 + i)},
		})
	}
	return mem
}

func createTestHandler(t *testing.T, ds cutoff.Dataset) *Handler {
	t.Helper()
	catalog, err := cutoff.DefaultCatalog()
	require.NoError(t, err)

	log := logger.NewTestLogger(t)
	svc := cutoff.NewService(ds, cutoff.NewCategorySet(cutoff.DefaultCategories), catalog, cutoff.DefaultPresentation(), log)
	h, err := NewHandler(&Config{Enabled: true, MaxJobsActive: 1, Timeout: 5 * time.Second}, svc, log)
	require.NoError(t, err)
	return h
}

// ==========================
// Execute
// ==========================

func TestHandler_Execute_CapsAndOrdersBlocks(t *testing.T) {
	h := createTestHandler(t, createLargeDataset(80))

	output, err := h.Execute(context.Background(), &Input{Rank: 1, Category: "GM"})
	require.NoError(t, err)

	require.Equal(t, 75, output.Count)
	require.Len(t, output.Offers, 75)

	// first block holds ranks 1000..1029, round three entries first
	assert.Equal(t, cutoff.RoundThird, output.Offers[0].WinningRound)
	assert.Equal(t, 1002, output.Offers[0].CategoryRank)
	assert.Equal(t, 1005, output.Offers[1].CategoryRank)
	assert.Equal(t, cutoff.RoundFirst, output.Offers[29].WinningRound)
	assert.Equal(t, 1027, output.Offers[29].CategoryRank)

	assert.Equal(t, cutoff.RoundThird, output.Offers[30].WinningRound)
	assert.Equal(t, 1032, output.Offers[30].CategoryRank)

	for _, o := range output.Offers {
		assert.Less(t, o.CategoryRank, 1075, "offers past the cap are dropped before blocking")
	}
}

func TestHandler_Execute_SmallSet(t *testing.T) {
	h := createTestHandler(t, createLargeDataset(4))

	output, err := h.Execute(context.Background(), &Input{Rank: 1002, Category: "GM"})
	require.NoError(t, err)
	require.Equal(t, 2, output.Count)
	assert.Equal(t, 1002, output.Offers[0].CategoryRank)
	assert.Equal(t, cutoff.RoundThird, output.Offers[0].WinningRound)
	assert.Equal(t, 1003, output.Offers[1].CategoryRank)
}

func TestHandler_Execute_Errors(t *testing.T) {
	h := createTestHandler(t, createLargeDataset(3))
	_, err := h.Execute(context.Background(), &Input{Rank: 1, Category: "gm"})
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidCategory, stdErr.Code)

	ds := createLargeDataset(3)
	ds.FailWith(errors.New("too many connections"))
	h = createTestHandler(t, ds)
	_, err = h.Execute(context.Background(), &Input{Rank: 1, Category: "GM"})
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeDatasetUnavailable, stdErr.Code)
	assert.Equal(t, 3, apperrors.GetRetryCount(stdErr.Code))
}

// ==========================
// Input parsing
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, createLargeDataset(1))

	input, err := h.parseInput(createMockJob(7, map[string]interface{}{"rank": 1200, "category": "2AG", "group": "TRENDING"}))
	require.NoError(t, err)
	assert.Equal(t, &Input{Rank: 1200, Category: "2AG", Group: "TRENDING"}, input)

	_, err = h.parseInput(createMockJob(8, map[string]interface{}{"rank": true, "category": "GM"}))
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeInvalidInput, stdErr.Code)
	assert.Contains(t, stdErr.Details, "rank")
}
