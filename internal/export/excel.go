package export

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/enatools/enafetch/internal/ena"
	"github.com/enatools/enafetch/internal/logctx"
	"github.com/xuri/excelize/v2"
)

// Sheet layout expected by the legacy import pipelines: a header block of
// study-level attributes followed by one row per file pair.
var dataColumns = []string{
	"Filename",
	"Mate File",
	"Sample Name",
	"Sample Accession number",
	"Taxon ID",
	"Library Name",
	"Fragment Size",
	"Read Count",
	"Base Count",
	"Comments",
}

var nonWord = regexp.MustCompile(`[^\w]+`)

type excelRow struct {
	filename  string
	mateFile  string
	sample    string
	sampleAcc string
	taxon     string
}

// WriteExcel groups the runs by study and writes one
// <study_accession>.xlsx per study into dir.
func WriteExcel(ctx context.Context, dir string, res *ena.Result) error {
	logger := logctx.LoggerFromContext(ctx)

	byStudy := make(map[string][]ena.Run)

	for _, run := range res.Runs {
		study := run["study_accession"]
		byStudy[study] = append(byStudy[study], run)
	}

	for study, runs := range byStudy {
		if err := writeStudy(ctx, dir, study, runs); err != nil {
			return fmt.Errorf("failed to write excel for study %s: %w", study, err)
		}

		logger.Info("wrote excel file", "study", study, "runs", len(runs))
	}

	return nil
}

func writeStudy(ctx context.Context, dir, study string, runs []ena.Run) error {
	logger := logctx.LoggerFromContext(ctx)

	rows := make([]excelRow, 0, len(runs))

	for _, run := range runs {
		row, err := pairFiles(run)
		if err != nil {
			logger.Warn("skipping run in excel export", "run_accession", run.Accession(), "err", err)

			continue
		}

		rows = append(rows, row)
	}

	if len(rows) == 0 {
		logger.Warn("found no filepaths to write, skipping", "study", study)

		return nil
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	header := [][2]string{
		{"Supplier Name", "Pathogen Informatics"},
		{"Supplier Organisation", "PaM"},
		{"Sanger Contact Name", "path-help"},
		{"Sequencing Technology", nonWord.ReplaceAllString(runs[0]["instrument_platform"], " ")},
		{"Study Name", nonWord.ReplaceAllString(runs[0]["study_title"], " ")},
		{"Study Accession number", study},
		{"Total size of files in GBytes", "1"},
		{"Data to be kept until", time.Now().AddDate(1, 0, 0).Format("02/01/2006")},
	}

	rowIdx := 1
	for _, hv := range header {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
		_ = f.SetSheetRow(sheet, cell, &[]interface{}{hv[0], hv[1]})
		rowIdx++
	}

	rowIdx++ // blank row between header block and data table

	cell, _ := excelize.CoordinatesToCellName(1, rowIdx)
	if err := f.SetSheetRow(sheet, cell, &dataColumns); err != nil {
		return err
	}

	rowIdx++

	for _, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, rowIdx)

		values := []interface{}{r.filename, r.mateFile, r.sample, r.sampleAcc, r.taxon, "", "", "", "", ""}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}

		rowIdx++
	}

	return f.SaveAs(filepath.Join(dir, study+".xlsx"))
}

// pairFiles extracts the forward/reverse filenames of a run. Single-file runs
// have no mate file; paired runs are matched on the _1/_2 suffix convention.
func pairFiles(run ena.Run) (excelRow, error) {
	ftp := strings.TrimSpace(run["fastq_ftp"])
	if ftp == "" {
		return excelRow{}, fmt.Errorf("no FTP URL was found")
	}

	files := strings.Split(ftp, ";")

	row := excelRow{
		sample:    run["sample_accession"],
		sampleAcc: run["sample_accession"],
		taxon:     run["tax_id"],
	}

	if len(files) == 1 {
		row.filename = path.Base(files[0])

		return row, nil
	}

	for _, file := range files {
		name := path.Base(file)

		switch {
		case strings.Contains(name, "_1"):
			row.filename = name
		case strings.Contains(name, "_2"):
			row.mateFile = name
		}
	}

	if row.filename == "" || row.mateFile == "" {
		return excelRow{}, fmt.Errorf("cannot extract filename and mate file from: %s", ftp)
	}

	return row, nil
}
