package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rent-predictor/models"
	"rent-predictor/services"
	"rent-predictor/utils"
)

type fakePredictor struct {
	artifact *models.Artifact
}

func (f *fakePredictor) Ready() bool { return f.artifact != nil }
func (f *fakePredictor) Artifact() *models.Artifact { return f.artifact }

func (f *fakePredictor) Predict(features []float64) (float64, error) {
	if f.artifact == nil {
		return 0, services.ErrModelNotLoaded
	}
	if len(features) != len(f.artifact.FeatureNames) {
		return 0, fmt.Errorf("%w: got %d", services.ErrFeatureMismatch, len(features))
	}
	var sum float64
	for _, v := range features {
		if v < 0 {
			return 0, fmt.Errorf("%w: negative", services.ErrInvalidFeature)
		}
		sum += v
	}
	return sum, nil
}

func (f *fakePredictor) PredictNamed(named map[string]float64) (float64, error) {
	if f.artifact == nil {
		return 0, services.ErrModelNotLoaded
	}
	row := make([]float64, 0, len(named))
	for _, name := range f.artifact.FeatureNames {
		v, ok := named[name]
		if !ok {
			return 0, fmt.Errorf("%w: missing %s", services.ErrFeatureMismatch, name)
		}
		row = append(row, v)
	}
	return f.Predict(row)
}

func loaded() *fakePredictor {
	return &fakePredictor{artifact: &models.Artifact{
		ID:           "abc",
		Name:         "rent_apartment_model.gob",
		FeatureNames: []string{"area", "garden"},
	}}
}

func do(t *testing.T, p Predictor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := New(p, utils.NewNopLogger(), Options{})

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, &fakePredictor{}, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP","ready":false}`, w.Body.String())

	w = do(t, loaded(), http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"UP","ready":true}`, w.Body.String())
}

func TestPredictPositional(t *testing.T) {
	w := do(t, loaded(), http.MethodPost, "/predict", `{"features":[50,10]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp predictResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 60.0, resp.Rent)
	assert.Equal(t, "abc", resp.ModelID)
	assert.Equal(t, "rent_apartment_model.gob", resp.ModelName)
}

func TestPredictNamed(t *testing.T) {
	w := do(t, loaded(), http.MethodPost, "/predict", `{"named":{"garden":5,"area":40}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"rent":45`)
}

func TestPredictErrors(t *testing.T) {
	tests := []struct {
		name string
		p    Predictor
		body string
		want int
	}{
		{"not loaded", &fakePredictor{}, `{"features":[1,2]}`, http.StatusServiceUnavailable},
		{"wrong length", loaded(), `{"features":[1,2,3]}`, http.StatusBadRequest},
		{"missing name", loaded(), `{"named":{"area":1}}`, http.StatusBadRequest},
		{"invalid value", loaded(), `{"features":[-1,2]}`, http.StatusBadRequest},
		{"empty body", loaded(), `{}`, http.StatusBadRequest},
		{"malformed", loaded(), `{"features":`, http.StatusBadRequest},
		{"both forms", loaded(), `{"features":[1,2],"named":{"area":1,"garden":2}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, tt.p, http.MethodPost, "/predict", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	w := do(t, loaded(), http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rent_predictions_total")
}
