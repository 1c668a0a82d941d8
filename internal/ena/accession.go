package ena

import (
	"context"
	"fmt"
	"strings"

	"github.com/enatools/enafetch/internal/logctx"
)

// AccessionType selects the level at which accessions are resolved to runs.
type AccessionType string

const (
	TypeRun    AccessionType = "run"
	TypeSample AccessionType = "sample"
	TypeStudy  AccessionType = "study"
)

func (t AccessionType) Valid() bool {
	switch t {
	case TypeRun, TypeSample, TypeStudy:
		return true
	}

	return false
}

var accessionPrefixes = map[AccessionType][]string{
	TypeRun:    {"SRR", "ERR", "DRR"},
	TypeSample: {"ERS", "DRS", "SRS", "SAM"},
	TypeStudy:  {"SRP", "ERP", "DRP", "PRJ"},
}

// ValidateAccession checks that accession carries one of the archive prefixes
// for its type.
func ValidateAccession(accession string, typ AccessionType) error {
	prefixes, ok := accessionPrefixes[typ]
	if !ok {
		return fmt.Errorf("invalid accession type: %s", typ)
	}

	for _, p := range prefixes {
		if strings.HasPrefix(accession, p) {
			return nil
		}
	}

	return fmt.Errorf("invalid %s accession: %s", typ, accession)
}

// FilterAccessions drops invalid and duplicate accessions, logging a warning
// for each one skipped. Order of the surviving accessions is preserved.
func FilterAccessions(ctx context.Context, accessions []string, typ AccessionType) []string {
	logger := logctx.LoggerFromContext(ctx)

	seen := make(map[string]struct{}, len(accessions))

	var valid []string

	for _, accession := range accessions {
		accession = strings.TrimSpace(accession)
		if accession == "" {
			continue
		}

		if _, dup := seen[accession]; dup {
			continue
		}

		seen[accession] = struct{}{}

		if err := ValidateAccession(accession, typ); err != nil {
			logger.Warn("skipping accession", "err", err)

			continue
		}

		valid = append(valid, accession)
	}

	return valid
}
