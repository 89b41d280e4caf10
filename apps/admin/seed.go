package main

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var seedClasses = map[string][]string{
	"Form 1A": {"Amani Kalenga", "Bahati Mwamba", "Chiku Ilunga", "Deborah Kasongo", "Elia Mutombo"},
	"Form 1B": {"Furaha Ngoy", "Gloire Kabamba", "Héritier Tshibangu", "Imani Banza", "Joséphine Mbuyi"},
	"Form 2A": {"Kapinga Mulaja", "Luc Kazadi", "Mardochée Nkulu", "Naomi Kyungu", "Olivier Mwepu"},
}

// seed populates the given academic year with demo classes, students and
// enrollments. It is idempotent on the year but not on the generated rows;
// re-running it against the same DB duplicates students.
func (cli *commandLine) seed(year string) error {
	ctx := context.Background()

	tx, err := cli.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q, args, _ := psql.Insert("academic_year").
		Columns("year", "is_active").
		Values(year, true).
		Suffix("ON CONFLICT (year) DO UPDATE SET is_active = TRUE").
		ToSql()
	if _, err = tx.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "seeding academic year")
	}

	// a single active year at a time
	q, args, _ = psql.Update("academic_year").
		Set("is_active", false).
		Where(sq.NotEq{"year": year}).
		ToSql()
	if _, err = tx.ExecContext(ctx, q, args...); err != nil {
		return errors.Wrap(err, "deactivating previous years")
	}

	for clsName, students := range seedClasses {
		clsID := uuid.New().String()
		q, args, _ = psql.Insert("class").
			Columns("id", "name", "academic_year").
			Values(clsID, clsName, year).
			ToSql()
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return errors.Wrapf(err, "seeding class %q", clsName)
		}

		for _, stName := range students {
			stID := uuid.New().String()
			q, args, _ = psql.Insert("student").
				Columns("id", "name").
				Values(stID, stName).
				ToSql()
			if _, err = tx.ExecContext(ctx, q, args...); err != nil {
				return errors.Wrapf(err, "seeding student %q", stName)
			}

			q, args, _ = psql.Insert("enrollment").
				Columns("student_id", "class_id", "academic_year").
				Values(stID, clsID, year).
				ToSql()
			if _, err = tx.ExecContext(ctx, q, args...); err != nil {
				return errors.Wrapf(err, "enrolling student %q", stName)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}

	fmt.Printf("seeded %d classes for %s\n", len(seedClasses), year)
	return nil
}
