package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"diettracker/config"
	"diettracker/middlewares"
	"diettracker/models"
	"diettracker/services"
	"diettracker/utils"
)

const testSecret = "test-secret"

type stubEstimator struct {
	err error
}

func (s *stubEstimator) Name() string { return "stub" }

func (s *stubEstimator) result() (*models.RecognitionResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := services.ParseEstimatorResponse(`{"food_items": [
		{"food_name": "Scrambled eggs", "calories": 140, "protein": 8, "carbs": 2, "fat": 7, "confidence": 90},
		{"food_name": "Toast", "calories": 80, "protein": 3, "carbs": 21, "fat": 2, "confidence": 85}
	], "overall_confidence": 85}`)
	return &r, nil
}

func (s *stubEstimator) EstimateImage(context.Context, []byte, string) (*models.RecognitionResult, error) {
	return s.result()
}

func (s *stubEstimator) EstimateText(context.Context, string) (*models.RecognitionResult, error) {
	return s.result()
}

type stubClassifier struct{}

func (stubClassifier) Name() string { return "stub" }

func (stubClassifier) Predict(context.Context, []byte) (*models.ClassifierPrediction, error) {
	return &models.ClassifierPrediction{Label: "Omelette", ClassKey: "omelette", Confidence: 0.9}, nil
}

type memImages struct{ puts int }

func (m *memImages) Enabled() bool { return true }

func (m *memImages) Put(_ context.Context, userID string, _ []byte, _ string) (string, error) {
	m.puts++
	return "https://cdn.test/food-images/" + userID + "/img.png", nil
}

type harness struct {
	router  *gin.Engine
	db      *gorm.DB
	images  *memImages
	token   string
	curator string
}

func newHarness(t *testing.T, est services.NutritionEstimator) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := config.Migrate(db); err != nil {
		t.Fatal(err)
	}

	hub := services.NewRealtimeHub()
	samples := services.NewTrainingSampleStore(db)
	images := &memImages{}
	router := SetupRouter(Deps{
		JWTSecret: testSecret,
		Recognizer: services.NewHybridRecognizer(est, stubClassifier{}, nil,
			services.HybridConfig{UseLocal: true, Threshold: 0.75}),
		Logs:      services.NewFoodLogService(db, hub),
		Samples:   samples,
		Feedback:  services.NewDatasetFeedbackRecorder(samples, 80),
		Images:    images,
		Nutrition: services.NewUSDAService("", ""),
		Hub:       hub,
	})
	token, err := utils.GenerateJWT(testSecret, "user-1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	curator, err := utils.GenerateRoleJWT(testSecret, "ops-1", middlewares.RoleCurator, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{router: router, db: db, images: images, token: token, curator: curator}
}

func (h *harness) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	return h.doAs(t, h.token, req)
}

func (h *harness) doAs(t *testing.T, token string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetRGBA(0, 0, color.RGBA{1, 2, 3, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if file != nil {
		fw, err := mw.CreateFormFile("image", "meal.png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(file)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestHealthAndAuth(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health = %d", w.Code)
	}
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/food-logs", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated = %d", w.Code)
	}
}

func TestRecognizeTextSavesLog(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize/text",
		strings.NewReader(`{"description": "2 eggs and toast", "meal_type": "breakfast", "save_log": true}`))
	req.Header.Set("Content-Type", "application/json")
	w := h.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Recognition struct {
			TotalCalories float64 `json:"total_calories"`
			TotalProtein  float64 `json:"total_protein"`
			Source        string  `json:"source"`
		} `json:"recognition"`
		FoodLog *models.FoodLog `json:"food_log"`
	}
	decode(t, w, &resp)
	if resp.Recognition.TotalCalories != 220 || resp.Recognition.TotalProtein != 11 {
		t.Fatalf("recognition = %+v", resp.Recognition)
	}
	if resp.FoodLog == nil || resp.FoodLog.Notes != "Text entry: 2 eggs and toast" {
		t.Fatalf("food log = %+v", resp.FoodLog)
	}

	w = h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/food-logs/summary", nil))
	var sum services.DailySummary
	decode(t, w, &sum)
	if sum.Calories != 220 || sum.MealCount != 1 || sum.MealsByType["breakfast"] == nil {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRecognizeTextValidation(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	for _, body := range []string{`{"description": "   "}`, `{"description": "soup", "meal_type": "brunch"}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/recognize/text", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if w := h.do(t, req); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d", body, w.Code)
		}
	}
}

func TestRecognizeImage(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	w := h.do(t, multipartRequest(t, "/api/v1/recognize/image", pngBytes(t), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if h.images.puts != 0 {
		t.Fatal("image uploaded without save_log")
	}

	w = h.do(t, multipartRequest(t, "/api/v1/recognize/image", []byte("just some text"), nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("text upload status = %d", w.Code)
	}
	w = h.do(t, multipartRequest(t, "/api/v1/recognize/image", nil, nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing image status = %d", w.Code)
	}
}

func TestRecognizeHybridRecordsFeedback(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	w := h.do(t, multipartRequest(t, "/api/v1/recognize/hybrid", pngBytes(t),
		map[string]string{"save_log": "true", "meal_type": "lunch"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Source     string `json:"source"`
		Enabled    bool   `json:"custom_model_enabled"`
		Recorded   int    `json:"dataset_samples_recorded"`
		Prediction *struct {
			Label string `json:"food_name"`
		} `json:"custom_model_prediction"`
		ImageURL string `json:"image_url"`
	}
	decode(t, w, &resp)
	if resp.Source != string(models.ProvenanceClassifierAssisted) || !resp.Enabled {
		t.Fatalf("source = %s enabled = %v", resp.Source, resp.Enabled)
	}
	if resp.Recorded != 2 || resp.Prediction == nil || resp.Prediction.Label != "Omelette" {
		t.Fatalf("response = %+v", resp)
	}
	if h.images.puts != 1 || resp.ImageURL == "" {
		t.Fatalf("puts = %d url = %q", h.images.puts, resp.ImageURL)
	}
	var n int64
	h.db.Model(&models.TrainingSample{}).Where("verified = ?", false).Count(&n)
	if n != 2 {
		t.Fatalf("samples = %d", n)
	}

	var sources []string
	h.db.Model(&models.TrainingSample{}).Distinct().Pluck("source", &sources)
	if len(sources) != 1 || sources[0] != models.SourceAIAuto {
		t.Fatalf("sources = %v", sources)
	}

	w = h.doAs(t, h.curator, httptest.NewRequest(http.MethodGet, "/api/v1/training-samples?verified=false", nil))
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 2 {
		t.Fatalf("listed samples = %d", list.Count)
	}
}

func TestHybridSkipsFeedbackWhenLogNotSaved(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	if err := h.db.Migrator().DropTable(&models.FoodLogItem{}, &models.FoodLog{}); err != nil {
		t.Fatal(err)
	}
	w := h.do(t, multipartRequest(t, "/api/v1/recognize/hybrid", pngBytes(t),
		map[string]string{"save_log": "true", "meal_type": "lunch"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Recorded int             `json:"dataset_samples_recorded"`
		FoodLog  json.RawMessage `json:"food_log"`
	}
	decode(t, w, &resp)
	if resp.Recorded != 0 || string(resp.FoodLog) != "null" {
		t.Fatalf("response = %s", w.Body.String())
	}
	var n int64
	h.db.Model(&models.TrainingSample{}).Count(&n)
	if n != 0 {
		t.Fatalf("samples = %d, want none without a saved log", n)
	}
}

func TestTrainingSamplesNeedCurator(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	body := `{"image_url": "https://cdn.test/x.jpg", "food_name": "Apple Pie"}`

	post := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/training-samples", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return h.doAs(t, token, req)
	}
	if w := post(h.token); w.Code != http.StatusForbidden {
		t.Fatalf("user create = %d", w.Code)
	}
	if w := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/training-samples", nil)); w.Code != http.StatusForbidden {
		t.Fatalf("user list = %d", w.Code)
	}
	var n int64
	h.db.Model(&models.TrainingSample{}).Count(&n)
	if n != 0 {
		t.Fatalf("user inserted %d samples", n)
	}

	w := post(h.curator)
	if w.Code != http.StatusCreated {
		t.Fatalf("curator create = %d: %s", w.Code, w.Body.String())
	}

	auto := models.TrainingSample{ImageURL: "https://cdn.test/y.jpg", FoodName: "Toast", Source: models.SourceAIAuto}
	if err := h.db.Create(&auto).Error; err != nil {
		t.Fatal(err)
	}
	verifyURL := "/api/v1/training-samples/" + auto.ID + "/verify"
	if w := h.do(t, httptest.NewRequest(http.MethodPost, verifyURL, nil)); w.Code != http.StatusForbidden {
		t.Fatalf("user verify = %d", w.Code)
	}
	w = h.doAs(t, h.curator, httptest.NewRequest(http.MethodPost, verifyURL, nil))
	var got models.TrainingSample
	decode(t, w, &got)
	if w.Code != http.StatusOK || !got.Verified {
		t.Fatalf("curator verify = %d: %s", w.Code, w.Body.String())
	}
	w = h.doAs(t, h.curator, httptest.NewRequest(http.MethodPost, "/api/v1/training-samples/nope/verify", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("verify missing = %d", w.Code)
	}
}

func TestEstimatorFailureIsBadGateway(t *testing.T) {
	h := newHarness(t, &stubEstimator{err: errors.New("upstream down")})
	w := h.do(t, multipartRequest(t, "/api/v1/recognize/hybrid", pngBytes(t), nil))
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
}

func TestFoodLogCRUD(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/food-logs", strings.NewReader(`{
		"meal_type": "dinner", "logged_date": "2026-10-14",
		"food_items": [{"food_name": "Salmon", "calories": 400, "protein": 35, "carbs": 0, "fat": 22}]
	}`))
	req.Header.Set("Content-Type", "application/json")
	w := h.do(t, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", w.Code, w.Body.String())
	}
	var created models.FoodLog
	decode(t, w, &created)
	if created.Provenance != models.ProvenanceManual || created.TotalCalories != 400 {
		t.Fatalf("created = %+v", created)
	}

	w = h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/food-logs?date=2026-10-14", nil))
	var list struct {
		Count int `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 {
		t.Fatalf("count = %d", list.Count)
	}
	if w := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/food-logs?limit=500", nil)); w.Code != http.StatusBadRequest {
		t.Fatalf("limit status = %d", w.Code)
	}

	if w := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/food-logs/"+created.ID, nil)); w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	if w := h.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/food-logs/"+created.ID, nil)); w.Code != http.StatusOK {
		t.Fatalf("delete = %d", w.Code)
	}
	if w := h.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/food-logs/"+created.ID, nil)); w.Code != http.StatusNotFound {
		t.Fatalf("second delete = %d", w.Code)
	}
}

func TestNutritionSearchValidation(t *testing.T) {
	h := newHarness(t, &stubEstimator{})
	if w := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/nutrition/search?query=a", nil)); w.Code != http.StatusBadRequest {
		t.Fatalf("short query = %d", w.Code)
	}
	w := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/nutrition/search?query=apple", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d", w.Code)
	}
	if w := h.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/nutrition/details?fdc_id=x", nil)); w.Code != http.StatusBadRequest {
		t.Fatalf("details = %d", w.Code)
	}
}
