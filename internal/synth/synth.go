// Package synth fabricates plausible dry-run results for the simulation engine.
package synth

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/hypnoticwarchief/cratex/pkg/models"
)

const (
	MinOperations = 1500
	MaxOperations = 3000
)

// Genre is a top-level folder and its sub-genre folders
type Genre struct {
	Name      string
	SubGenres []string
}

// Taxonomy is the fixed genre tree used for classifications
var Taxonomy = []Genre{
	{Name: "Techno", SubGenres: []string{"Peak Time", "Hypnotic", "Raw", "Hard", "Dub"}},
	{Name: "House", SubGenres: []string{"Deep", "Tech House", "Progressive", "Lo-Fi", "Afro"}},
	{Name: "Drum & Bass", SubGenres: []string{"Liquid", "Neurofunk", "Jump Up", "Intelligent"}},
	{Name: "Ambient", SubGenres: []string{"Drone", "Field Recordings", "Space"}},
	{Name: "UK Garage", SubGenres: []string{"2-Step", "Speed Garage", "Bassline"}},
}

// Artists is the fixed pool filenames are drawn from
var Artists = []string{
	"Sub Focus", "Four Tet", "Bicep", "Overmono", "Mall Grab", "Calibre", "Burial", "Aphex Twin",
	"Charlotte de Witte", "Peggy Gou", "Fred Again..", "Skrillex", "Floating Points", "Caribou",
	"Bonobo", "Jamie xx", "Disclosure", "Flume", "Lane 8", "Solomun", "Amelie Lens", "Carl Cox",
}

// Generator produces operation lists from its own random source
type Generator struct {
	rng *rand.Rand
}

// New creates a generator; equal seeds yield equal output
func New(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns between MinOperations and MaxOperations pending moves under basePath
func (g *Generator) Generate(basePath string) []models.FileOperation {
	base := strings.TrimRight(basePath, "/")
	total := MinOperations + g.rng.IntN(MaxOperations-MinOperations)

	ops := make([]models.FileOperation, 0, total)
	seen := make(map[string]struct{}, total)

	for i := 1; i <= total; i++ {
		genre := Taxonomy[g.rng.IntN(len(Taxonomy))]
		sub := genre.SubGenres[g.rng.IntN(len(genre.SubGenres))]
		artist := Artists[g.rng.IntN(len(Artists))]

		filename := fmt.Sprintf("%s - Track %04d.aiff", artist, i)
		if _, dup := seen[filename]; dup {
			continue
		}
		seen[filename] = struct{}{}

		confidence := 85 + g.rng.Float64()*14
		ops = append(ops, models.FileOperation{
			ID:          fmt.Sprintf("op_%d", i),
			Filename:    filename,
			Source:      base + "/" + filename,
			Destination: base + "/" + Sanitize(genre.Name) + "/" + Sanitize(sub) + "/" + filename,
			Reason:      fmt.Sprintf("AI Classification: %s > %s (%.1f%%)", genre.Name, sub, confidence),
			Status:      models.OperationPending,
		})
	}
	return ops
}

// Sanitize replaces each run of whitespace with an underscore
func Sanitize(s string) string {
	return strings.Join(strings.Fields(s), "_")
}
