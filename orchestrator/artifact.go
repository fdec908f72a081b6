package orchestrator

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ArtifactEntity is one row of entities.csv.
type ArtifactEntity struct {
	ID          string
	Name        string
	Label       string
	Description string
}

// ArtifactRelationship is one row of relationships.csv.
type ArtifactRelationship struct {
	ID       string
	SourceID string
	TargetID string
	Relation string
	Weight   float64
}

// ArtifactMembership is one row of communities.csv.
type ArtifactMembership struct {
	ClusterID string
	EntityID  string
}

// ArtifactReport is one row of community_reports.csv.
type ArtifactReport struct {
	ClusterID string
	Title     string
	Summary   string
}

// ArtifactSet is the four-file CSV contract a pipeline run produces (spec
// §4.11 step 5 / §6's artifact file layout). entities.csv and
// relationships.csv are required; communities.csv and
// community_reports.csv are optional (their absence degrades a run to
// PARTIAL rather than FAILED).
type ArtifactSet struct {
	Entities      []ArtifactEntity
	Relationships []ArtifactRelationship
	Memberships   []ArtifactMembership
	Reports       []ArtifactReport
}

const (
	entitiesFile      = "entities.csv"
	relationshipsFile = "relationships.csv"
	communitiesFile   = "communities.csv"
	reportsFile       = "community_reports.csv"
)

// WriteArtifactSet writes the four CSV files into dir using encoding/csv.
// The artifact format is deliberately a plain CSV contract (spec §6); no
// pack repo vendors a CSV library beyond the standard one.
func WriteArtifactSet(dir string, set ArtifactSet) error {
	if err := writeCSV(filepath.Join(dir, entitiesFile), []string{"entity_id", "name", "type", "description"}, len(set.Entities), func(i int) []string {
		e := set.Entities[i]
		return []string{e.ID, e.Name, e.Label, e.Description}
	}); err != nil {
		return err
	}

	if err := writeCSV(filepath.Join(dir, relationshipsFile), []string{"relationship_id", "src_id", "dst_id", "relationship_type", "weight"}, len(set.Relationships), func(i int) []string {
		r := set.Relationships[i]
		return []string{r.ID, r.SourceID, r.TargetID, r.Relation, strconv.FormatFloat(r.Weight, 'f', -1, 64)}
	}); err != nil {
		return err
	}

	if set.Memberships != nil {
		if err := writeCSV(filepath.Join(dir, communitiesFile), []string{"community_id", "entity_id"}, len(set.Memberships), func(i int) []string {
			m := set.Memberships[i]
			return []string{m.ClusterID, m.EntityID}
		}); err != nil {
			return err
		}
	}

	if set.Reports != nil {
		if err := writeCSV(filepath.Join(dir, reportsFile), []string{"community_id", "report_title", "report_summary"}, len(set.Reports), func(i int) []string {
			r := set.Reports[i]
			return []string{r.ClusterID, r.Title, r.Summary}
		}); err != nil {
			return err
		}
	}

	return nil
}

func writeCSV(path string, header []string, n int, row func(i int) []string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := w.Write(row(i)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadArtifactSet reads the four CSV files from dir. entities.csv or
// relationships.csv missing is fatal (err != nil); communities.csv or
// community_reports.csv missing is reported in missingOptional instead.
func ReadArtifactSet(dir string) (set ArtifactSet, missingOptional []string, err error) {
	entities, err := readEntities(filepath.Join(dir, entitiesFile))
	if err != nil {
		return ArtifactSet{}, nil, fmt.Errorf("entities.csv: %w", err)
	}
	set.Entities = entities

	relationships, err := readRelationships(filepath.Join(dir, relationshipsFile))
	if err != nil {
		return ArtifactSet{}, nil, fmt.Errorf("relationships.csv: %w", err)
	}
	set.Relationships = relationships

	if memberships, err := readMemberships(filepath.Join(dir, communitiesFile)); err != nil {
		missingOptional = append(missingOptional, communitiesFile)
	} else {
		set.Memberships = memberships
	}

	if reports, err := readReports(filepath.Join(dir, reportsFile)); err != nil {
		missingOptional = append(missingOptional, reportsFile)
	} else {
		set.Reports = reports
	}

	return set, missingOptional, nil
}

func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

func readEntities(path string) ([]ArtifactEntity, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	out := make([]ArtifactEntity, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		out = append(out, ArtifactEntity{ID: row[0], Name: row[1], Label: row[2], Description: row[3]})
	}
	return out, nil
}

func readRelationships(path string) ([]ArtifactRelationship, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	out := make([]ArtifactRelationship, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		weight, _ := strconv.ParseFloat(row[4], 64)
		out = append(out, ArtifactRelationship{ID: row[0], SourceID: row[1], TargetID: row[2], Relation: row[3], Weight: weight})
	}
	return out, nil
}

func readMemberships(path string) ([]ArtifactMembership, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	out := make([]ArtifactMembership, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		out = append(out, ArtifactMembership{ClusterID: row[0], EntityID: row[1]})
	}
	return out, nil
}

func readReports(path string) ([]ArtifactReport, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	out := make([]ArtifactReport, 0, len(rows))
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		out = append(out, ArtifactReport{ClusterID: row[0], Title: row[1], Summary: row[2]})
	}
	return out, nil
}
