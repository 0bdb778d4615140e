package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

func shirtCatalog() []domain.Product {
	return []domain.Product{
		{ID: "p1", SKU: "SHIRT-RED-S", Title: "Shirt Red S", Category: "Apparel", Price: 9.99},
		{ID: "p2", SKU: "SHIRT-RED-M", Title: "Shirt Red M", Category: "Apparel", Price: 9.99},
		{ID: "p3", SKU: "SHIRT-BLUE-S", Title: "Shirt Blue S", Category: "Apparel", Price: 10.49},
	}
}

func TestLocalDetectorRun(t *testing.T) {
	detector := NewLocalDetector(DetectorOptions{}, nil)

	t.Run("sibling skus become one transitive suggestion", func(t *testing.T) {
		result, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: shirtCatalog(),
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.Incomplete {
			t.Error("Incomplete = true, want false")
		}
		if result.PassID == "" {
			t.Error("PassID is empty")
		}
		if len(result.Suggestions) != 1 {
			t.Fatalf("len(Suggestions) = %d, want 1", len(result.Suggestions))
		}

		sg := result.Suggestions[0]
		if sg.ID != "sg-001" {
			t.Errorf("ID = %q, want %q", sg.ID, "sg-001")
		}
		if sg.BaseKey != "shirt" {
			t.Errorf("BaseKey = %q, want %q", sg.BaseKey, "shirt")
		}
		if want := []string{"p1", "p2", "p3"}; !reflect.DeepEqual(sg.MemberProductIDs, want) {
			t.Errorf("MemberProductIDs = %v, want %v", sg.MemberProductIDs, want)
		}
		if sg.Confidence < domain.DefaultMinConfidence || sg.Confidence > 1 {
			t.Errorf("Confidence = %v, want within [%v, 1]", sg.Confidence, domain.DefaultMinConfidence)
		}
		if want := []string{"color: blue/red", "size: m/s"}; !reflect.DeepEqual(sg.Differences, want) {
			t.Errorf("Differences = %v, want %v", sg.Differences, want)
		}
		if sg.Status != domain.SuggestionPending {
			t.Errorf("Status = %q, want %q", sg.Status, domain.SuggestionPending)
		}

		if len(result.Patterns) != 1 {
			t.Fatalf("len(Patterns) = %d, want 1", len(result.Patterns))
		}
		if pt := result.Patterns[0]; pt.BaseKey != "shirt" || pt.ProductCount != 3 {
			t.Errorf("Pattern = %+v, want baseKey shirt with 3 products", pt)
		}
	})

	t.Run("unrelated skus yield nothing", func(t *testing.T) {
		result, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: []domain.Product{
				{ID: "p1", SKU: "A1"},
				{ID: "p2", SKU: "B2"},
			},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(result.Suggestions) != 0 {
			t.Errorf("Suggestions = %v, want none", result.Suggestions)
		}
		if len(result.Patterns) != 0 {
			t.Errorf("Patterns = %v, want none", result.Patterns)
		}
	})

	t.Run("output is independent of catalog order", func(t *testing.T) {
		products := shirtCatalog()
		reversed := make([]domain.Product, len(products))
		for i, p := range products {
			reversed[len(products)-1-i] = p
		}

		a, err := detector.Run(context.Background(), domain.DetectionRequest{Products: products})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		b, err := detector.Run(context.Background(), domain.DetectionRequest{Products: reversed})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}

		if !reflect.DeepEqual(a.Suggestions, b.Suggestions) {
			t.Errorf("suggestions diverge across input orders:\n%v\nvs\n%v", a.Suggestions, b.Suggestions)
		}
		if !reflect.DeepEqual(a.Patterns, b.Patterns) {
			t.Errorf("patterns diverge across input orders:\n%v\nvs\n%v", a.Patterns, b.Patterns)
		}
	})

	t.Run("sensitivity is a pure knob", func(t *testing.T) {
		pair := []domain.Product{
			{ID: "p1", SKU: "TSHIRT-BLUE-XL"},
			{ID: "p2", SKU: "TSHIRT-RED-XL"},
		}

		loose, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: pair,
			Config:   domain.DetectionConfig{Sensitivity: 0.6},
		})
		if err != nil {
			t.Fatalf("Run(0.6) error = %v", err)
		}
		if len(loose.Suggestions) != 1 {
			t.Fatalf("sensitivity 0.6: len(Suggestions) = %d, want 1", len(loose.Suggestions))
		}

		strict, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: pair,
			Config:   domain.DetectionConfig{Sensitivity: 1.0},
		})
		if err != nil {
			t.Fatalf("Run(1.0) error = %v", err)
		}
		if len(strict.Suggestions) != 0 {
			t.Errorf("sensitivity 1.0: Suggestions = %v, want none", strict.Suggestions)
		}
	})

	t.Run("grouped products never re-enter suggestions", func(t *testing.T) {
		products := append(shirtCatalog(), domain.Product{
			ID: "p4", SKU: "SHIRT-RED-L", Title: "Shirt Red L", Category: "Apparel", Price: 9.99,
		})

		result, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products:          products,
			GroupedProductIDs: []string{"p1"},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		for _, sg := range result.Suggestions {
			if containsID(sg.MemberProductIDs, "p1") {
				t.Errorf("suggestion %s contains the already grouped p1", sg.ID)
			}
		}
		if len(result.Suggestions) != 1 {
			t.Fatalf("len(Suggestions) = %d, want 1", len(result.Suggestions))
		}
		if want := []string{"p2", "p4"}; !reflect.DeepEqual(result.Suggestions[0].MemberProductIDs, want) {
			t.Errorf("MemberProductIDs = %v, want %v", result.Suggestions[0].MemberProductIDs, want)
		}
	})

	t.Run("one rejection penalizes below the floor without suppressing", func(t *testing.T) {
		history := []domain.FeedbackEvent{
			{ID: "f1", BaseKey: "shirt", Action: domain.FeedbackRejected},
		}

		result, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: shirtCatalog(),
			History:  history,
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(result.Suggestions) != 0 {
			t.Errorf("Suggestions = %v, want none below the confidence floor", result.Suggestions)
		}
		if len(result.Patterns) != 1 {
			t.Fatalf("len(Patterns) = %d, want 1", len(result.Patterns))
		}
		if pt := result.Patterns[0]; pt.Suppressed || pt.Rejections != 1 {
			t.Errorf("Pattern = %+v, want 1 rejection and no suppression", pt)
		}
	})

	t.Run("three rejections suppress the pattern until history clears", func(t *testing.T) {
		history := []domain.FeedbackEvent{
			{ID: "f1", BaseKey: "shirt", Action: domain.FeedbackRejected},
			{ID: "f2", BaseKey: "shirt", Action: domain.FeedbackRejected},
			{ID: "f3", BaseKey: "shirt", Action: domain.FeedbackRejected},
		}

		suppressed, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: shirtCatalog(),
			History:  history,
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(suppressed.Suggestions) != 0 {
			t.Errorf("Suggestions = %v, want none while suppressed", suppressed.Suggestions)
		}
		if len(suppressed.Patterns) != 1 {
			t.Fatalf("len(Patterns) = %d, want 1", len(suppressed.Patterns))
		}
		if pt := suppressed.Patterns[0]; !pt.Suppressed || pt.Rejections != 3 || pt.Confidence != 0 {
			t.Errorf("Pattern = %+v, want suppressed with 3 rejections and zero confidence", pt)
		}

		cleared, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: shirtCatalog(),
		})
		if err != nil {
			t.Fatalf("Run() after clear error = %v", err)
		}
		if len(cleared.Suggestions) != 1 {
			t.Errorf("len(Suggestions) = %d after history clear, want 1", len(cleared.Suggestions))
		}
	})

	t.Run("degenerate keys never match", func(t *testing.T) {
		products := []domain.Product{
			{ID: "p1", SKU: "SHIRT-RED-S"},
			{ID: "p2", SKU: "SHIRT-RED-M"},
			{ID: "p3", SKU: "///", Title: "  "},
		}

		result, err := detector.Run(context.Background(), domain.DetectionRequest{Products: products})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(result.Suggestions) != 1 {
			t.Fatalf("len(Suggestions) = %d, want 1", len(result.Suggestions))
		}
		if containsID(result.Suggestions[0].MemberProductIDs, "p3") {
			t.Error("suggestion contains the degenerate-key product")
		}
	})

	t.Run("min group size filters small clusters", func(t *testing.T) {
		result, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: []domain.Product{
				{ID: "p1", SKU: "SHIRT-RED-S"},
				{ID: "p2", SKU: "SHIRT-RED-M"},
			},
			Config: domain.DetectionConfig{MinGroupSize: 3},
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if len(result.Suggestions) != 0 || len(result.Patterns) != 0 {
			t.Errorf("Suggestions = %v, Patterns = %v, want both empty", result.Suggestions, result.Patterns)
		}
	})

	t.Run("exhausted time budget returns a flagged partial result", func(t *testing.T) {
		result, err := detector.Run(context.Background(), domain.DetectionRequest{
			Products: shirtCatalog(),
			Config:   domain.DetectionConfig{MaxAnalysisTime: time.Nanosecond},
		})
		if err == nil {
			t.Fatal("Run() error = nil, want analysis timeout")
		}
		if !domain.IsAnalysisTimeout(err) {
			t.Fatalf("Run() error = %v, want AnalysisTimeoutError", err)
		}
		if result == nil {
			t.Fatal("result = nil, want partial result alongside the timeout")
		}
		if !result.Incomplete {
			t.Error("Incomplete = false, want true")
		}
	})

	t.Run("cancelled context abandons the pass", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := detector.Run(ctx, domain.DetectionRequest{Products: shirtCatalog()})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run() error = %v, want context.Canceled", err)
		}
		if result != nil {
			t.Errorf("result = %v, want nil on cancellation", result)
		}
	})
}

func TestResolveDetectionConfig(t *testing.T) {
	t.Run("zero values become defaults", func(t *testing.T) {
		cfg, err := resolveDetectionConfig(domain.DetectionConfig{})
		if err != nil {
			t.Fatalf("resolveDetectionConfig() error = %v", err)
		}
		if cfg.Sensitivity != domain.DefaultSensitivity {
			t.Errorf("Sensitivity = %v, want %v", cfg.Sensitivity, domain.DefaultSensitivity)
		}
		if cfg.MinConfidence != domain.DefaultMinConfidence {
			t.Errorf("MinConfidence = %v, want %v", cfg.MinConfidence, domain.DefaultMinConfidence)
		}
		if cfg.MinGroupSize != domain.DefaultMinGroupSize {
			t.Errorf("MinGroupSize = %v, want %v", cfg.MinGroupSize, domain.DefaultMinGroupSize)
		}
	})

	t.Run("out of range values fail with the offending field", func(t *testing.T) {
		testCases := []struct {
			name  string
			cfg   domain.DetectionConfig
			field string
		}{
			{"sensitivity too high", domain.DetectionConfig{Sensitivity: 1.5}, "sensitivity"},
			{"sensitivity too low", domain.DetectionConfig{Sensitivity: 0.05}, "sensitivity"},
			{"confidence too high", domain.DetectionConfig{MinConfidence: 2}, "minConfidence"},
			{"group size too small", domain.DetectionConfig{MinGroupSize: 1}, "minGroupSize"},
			{"negative time budget", domain.DetectionConfig{MaxAnalysisTime: -time.Second}, "maxAnalysisTime"},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := resolveDetectionConfig(tc.cfg)
				var ve *domain.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("resolveDetectionConfig() error = %v, want ValidationError", err)
				}
				if ve.Field != tc.field {
					t.Errorf("Field = %q, want %q", ve.Field, tc.field)
				}
			})
		}
	})
}
