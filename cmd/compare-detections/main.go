// Command compare-detections diffs two detection GeoJSON files a sink
// wrote for the same image_id - typically an old and new run after a
// refinery or detector change - and reports feature count, geometry
// type, and detection_score distribution differences. Generalizes the
// tile-service's compare-geojson road-diff tool from road Name
// comparison to detection_score/bounds_imcoords comparison.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

type detectionGeoJSON struct {
	Type     string      `json:"type"`
	Features []detection `json:"features"`
}

type detection struct {
	Type       string                 `json:"type"`
	Geometry   geometry               `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: compare-detections <old.geojson> <new.geojson>")
		fmt.Println("Example: compare-detections run1/image-42.geojson run2/image-42.geojson")
		os.Exit(1)
	}

	oldPath, newPath := os.Args[1], os.Args[2]

	oldFC, err := load(oldPath)
	if err != nil {
		fmt.Printf("Error loading %s: %v\n", oldPath, err)
		os.Exit(1)
	}
	newFC, err := load(newPath)
	if err != nil {
		fmt.Printf("Error loading %s: %v\n", newPath, err)
		os.Exit(1)
	}

	compare(oldFC, newFC, oldPath, newPath)
}

func load(path string) (*detectionGeoJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc detectionGeoJSON
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func compare(old, new *detectionGeoJSON, oldPath, newPath string) {
	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("Detection comparison")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("OLD: %s\n", oldPath)
	fmt.Printf("NEW: %s\n", newPath)
	fmt.Println()

	fmt.Println("Feature counts:")
	fmt.Printf("  OLD: %d\n", len(old.Features))
	fmt.Printf("  NEW: %d\n", len(new.Features))
	diff := len(new.Features) - len(old.Features)
	switch {
	case diff > 0:
		fmt.Printf("  Difference: +%d\n", diff)
	case diff < 0:
		fmt.Printf("  Difference: %d (fewer detections survived)\n", diff)
	default:
		fmt.Printf("  Difference: 0\n")
	}
	fmt.Println()

	fmt.Println("Geometry types:")
	printTypeCounts("OLD", geometryTypeCounts(old))
	printTypeCounts("NEW", geometryTypeCounts(new))
	fmt.Println()

	oldScores := scoreBuckets(old)
	newScores := scoreBuckets(new)
	fmt.Println("Score distribution (0.1 buckets):")
	printScoreBuckets("OLD", oldScores)
	printScoreBuckets("NEW", newScores)
	fmt.Println()

	oldProps := propertyCoverage(old)
	newProps := propertyCoverage(new)
	fmt.Println("Property coverage:")
	printPropertyCoverage("OLD", oldProps, len(old.Features))
	printPropertyCoverage("NEW", newProps, len(new.Features))

	fmt.Println(strings.Repeat("=", 70))
	if diff < 0 {
		fmt.Printf("WARNING: NEW has %d fewer detections than OLD.\n", -diff)
	} else {
		fmt.Println("No detection count regression.")
	}
	fmt.Println(strings.Repeat("=", 70))
}

func geometryTypeCounts(fc *detectionGeoJSON) map[string]int {
	counts := make(map[string]int)
	for _, f := range fc.Features {
		counts[f.Geometry.Type]++
	}
	return counts
}

func printTypeCounts(label string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("  %s:\n", label)
	for _, k := range keys {
		fmt.Printf("    %s: %d\n", k, counts[k])
	}
}

// scoreBuckets counts features by detection_score rounded down to the
// nearest 0.1, so a reviewer can see whether a change shifted the score
// distribution rather than just the raw count.
func scoreBuckets(fc *detectionGeoJSON) map[int]int {
	buckets := make(map[int]int)
	for _, f := range fc.Features {
		score, ok := f.Properties["detection_score"].(float64)
		if !ok {
			continue
		}
		bucket := int(score * 10)
		buckets[bucket]++
	}
	return buckets
}

func printScoreBuckets(label string, buckets map[int]int) {
	keys := make([]int, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fmt.Printf("  %s:\n", label)
	for _, k := range keys {
		fmt.Printf("    [%.1f, %.1f): %d\n", float64(k)/10, float64(k+1)/10, buckets[k])
	}
}

func propertyCoverage(fc *detectionGeoJSON) map[string]int {
	counts := make(map[string]int)
	for _, f := range fc.Features {
		for key := range f.Properties {
			counts[key]++
		}
	}
	return counts
}

func printPropertyCoverage(label string, counts map[string]int, total int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("  %s:\n", label)
	for _, k := range keys {
		pct := 0.0
		if total > 0 {
			pct = float64(counts[k]) / float64(total) * 100
		}
		fmt.Printf("    %s: %d features (%.1f%%)\n", k, counts[k], pct)
	}
}
