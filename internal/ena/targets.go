package ena

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/enatools/enafetch/internal/download"
	"github.com/enatools/enafetch/internal/logctx"
)

// TargetOptions controls how metadata rows are turned into download targets.
type TargetOptions struct {
	// OutputDir is the root under which files are written.
	OutputDir string

	// ByStudy nests each file one level under its study accession.
	ByStudy bool

	// FileType selects which archive file columns to use: "fastq" (default),
	// "submitted" or "sra".
	FileType string
}

// Targets flattens the semicolon-separated <filetype>_ftp / <filetype>_md5
// columns of each run into one download target per file. Rows with no FTP
// location or with mismatched URL/checksum counts are skipped with a warning;
// they never abort the job.
func Targets(ctx context.Context, res *Result, opts TargetOptions) []download.Target {
	logger := logctx.LoggerFromContext(ctx)

	fileType := opts.FileType
	if fileType == "" {
		fileType = "fastq"
	}

	ftpCol := fileType + "_ftp"
	md5Col := fileType + "_md5"
	bytesCol := fileType + "_bytes"

	var targets []download.Target

	for _, run := range res.Runs {
		files, err := splitFileColumns(run, ftpCol, md5Col, bytesCol)
		if err != nil {
			logger.Warn("found invalid metadata for run, skipping",
				"run_accession", run.Accession(), "err", err)

			continue
		}

		for _, f := range files {
			dir := opts.OutputDir
			if opts.ByStudy && run["study_accession"] != "" {
				dir = filepath.Join(dir, run["study_accession"])
			}

			name := path.Base(f.location)

			targets = append(targets, download.Target{
				ID:        run.Accession() + "/" + name,
				URL:       "https://" + f.location,
				LocalPath: filepath.Join(dir, name),
				MD5:       f.md5,
				Size:      f.size,
				Run:       run.Accession(),
				Study:     run["study_accession"],
			})
		}
	}

	return targets
}

type fileRef struct {
	location string
	md5      string
	size     int64
}

func splitFileColumns(run Run, ftpCol, md5Col, bytesCol string) ([]fileRef, error) {
	if strings.TrimSpace(run[ftpCol]) == "" {
		return nil, fmt.Errorf("no FTP URL was found")
	}

	locations := strings.Split(run[ftpCol], ";")
	md5s := strings.Split(run[md5Col], ";")

	if len(md5s) != len(locations) {
		return nil, fmt.Errorf("the number of FTP URLs does not match the number of MD5 checksums")
	}

	var sizes []string
	if strings.TrimSpace(run[bytesCol]) != "" {
		sizes = strings.Split(run[bytesCol], ";")
	}

	files := make([]fileRef, 0, len(locations))

	for i := range locations {
		f := fileRef{
			location: strings.TrimSpace(locations[i]),
			md5:      strings.TrimSpace(md5s[i]),
		}

		if f.location == "" || f.md5 == "" {
			return nil, fmt.Errorf("empty FTP URL or MD5 checksum")
		}

		if i < len(sizes) {
			f.size, _ = strconv.ParseInt(sizes[i], 10, 64)
		}

		files = append(files, f)
	}

	return files, nil
}
