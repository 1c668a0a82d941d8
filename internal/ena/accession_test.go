package ena

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccessionType_Valid(t *testing.T) {
	assert.True(t, TypeRun.Valid())
	assert.True(t, TypeSample.Valid())
	assert.True(t, TypeStudy.Valid())
	assert.False(t, AccessionType("experiment").Valid())
	assert.False(t, AccessionType("").Valid())
}

func TestValidateAccession(t *testing.T) {
	tests := []struct {
		name      string
		accession string
		typ       AccessionType
		wantErr   bool
	}{
		{"sra run", "SRR123456", TypeRun, false},
		{"ena run", "ERR123456", TypeRun, false},
		{"ddbj run", "DRR123456", TypeRun, false},
		{"sample as run", "ERS123456", TypeRun, true},
		{"ena sample", "ERS123456", TypeSample, false},
		{"biosample", "SAMEA123456", TypeSample, false},
		{"ena study", "ERP123456", TypeStudy, false},
		{"bioproject", "PRJEB1234", TypeStudy, false},
		{"run as study", "ERR123456", TypeStudy, true},
		{"garbage", "not-an-accession", TypeRun, true},
		{"unknown type", "ERR123456", AccessionType("experiment"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAccession(tt.accession, tt.typ)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFilterAccessions(t *testing.T) {
	got := FilterAccessions(context.Background(), []string{
		"ERR000001",
		"  SRR000002  ",
		"ERR000001",
		"",
		"bogus",
		"DRR000003",
	}, TypeRun)

	assert.Equal(t, []string{"ERR000001", "SRR000002", "DRR000003"}, got)
}

func TestFilterAccessions_AllInvalid(t *testing.T) {
	got := FilterAccessions(context.Background(), []string{"bogus", ""}, TypeRun)
	assert.Empty(t, got)
}
