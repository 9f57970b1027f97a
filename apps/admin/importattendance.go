package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/attendance"
	"github.com/Team04-UCSD-CSE210/conductor-app-sub001/core/authz"
)

var errMissingStatusColumn = errors.New("csv header must have a status column and an email or institutional_id column")

// readImportRecords parses a CSV with a header row. Column order is free.
func readImportRecords(r io.Reader) ([]attendance.ImportRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv header")
	}
	cols := map[string]int{"email": -1, "institutional_id": -1, "status": -1}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, ok := cols[name]; ok {
			cols[name] = i
		}
	}
	if cols["status"] < 0 || (cols["email"] < 0 && cols["institutional_id"] < 0) {
		return nil, errMissingStatusColumn
	}
	field := func(row []string, name string) string {
		if i := cols[name]; i >= 0 && i < len(row) {
			return row[i]
		}
		return ""
	}

	records := make([]attendance.ImportRecord, 0)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading csv row")
		}
		records = append(records, attendance.ImportRecord{
			Email:           field(row, "email"),
			InstitutionalID: field(row, "institutional_id"),
			Status:          attendance.Status(field(row, "status")),
		})
	}
	return records, nil
}

func (cli *commandLine) importAttendance(sessionID, path, asLogin string) error {
	ctx := context.Background()
	actor, err := cli.findUser(ctx, asLogin)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	records, err := readImportRecords(f)
	if err != nil {
		return err
	}

	report, err := cli.attSvc.BulkImport(ctx, sessionID, attendance.BulkImport{Attendance: records}, authz.NewPrincipal(actor))
	if err != nil {
		return err
	}
	for _, res := range report.Results {
		if !res.Success {
			fmt.Fprintf(cli.out, "row %d (%s%s): %s\n", res.Index+1, res.Email, res.InstitutionalID, res.Error)
		}
	}
	fmt.Fprintf(cli.out, "%d imported, %d failed\n", report.Imported, report.Failed)
	return nil
}
