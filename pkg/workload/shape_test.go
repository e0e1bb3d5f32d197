package workload

import (
	"testing"

	"github.com/stevedore-app/stevedore/pkg/properties"
)

func TestSelect(t *testing.T) {
	tests := []struct {
		name         string
		request      map[string]string
		wantShape    Shape
		wantCount    int
		wantOrdering Ordering
	}{
		{
			name:         "single instance",
			request:      nil,
			wantShape:    ShapeSimple,
			wantCount:    1,
			wantOrdering: OrderingNone,
		},
		{
			name:         "multiple instances",
			request:      map[string]string{properties.PropertyCount: "3"},
			wantShape:    ShapeScaled,
			wantCount:    3,
			wantOrdering: OrderingNone,
		},
		{
			name: "indexed",
			request: map[string]string{
				properties.PropertyIndexed: "true",
				properties.PropertyCount:   "3",
			},
			wantShape:    ShapeIndexed,
			wantCount:    3,
			wantOrdering: OrderingSequential,
		},
		{
			name:         "indexed single instance is still indexed",
			request:      map[string]string{properties.PropertyIndexed: "true"},
			wantShape:    ShapeIndexed,
			wantCount:    1,
			wantOrdering: OrderingSequential,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := properties.Resolve(properties.Properties{}, tt.request)
			if err != nil {
				t.Fatalf("Resolve returned error: %v", err)
			}
			desc := Select(spec)
			if desc.Shape != tt.wantShape || desc.Count != tt.wantCount || desc.Ordering != tt.wantOrdering {
				t.Errorf("Select = %+v, want shape=%s count=%d ordering=%s",
					desc, tt.wantShape, tt.wantCount, tt.wantOrdering)
			}
		})
	}
}
