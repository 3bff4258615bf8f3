package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"

	"github.com/sbr-consolidate/internal/record"
)

const finalColumns = `final_id, distinct_id, idsbr, query, name, category, rating, review_count,
	address, phone, website, latitude, longitude, status, hours, place_type, validation`

// ReplaceFinal swaps the final table for a new typed set.
func (s *Store) ReplaceFinal(ctx context.Context, finals []record.Final) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin final")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM final_listing"); err != nil {
		return eris.Wrap(err, "store: clear final_listing")
	}

	stmt, err := tx.PrepareContext(ctx, s.rebind(
		"INSERT INTO final_listing ("+finalColumns+") VALUES ("+placeholders(17)+")"))
	if err != nil {
		return eris.Wrap(err, "store: prepare final insert")
	}
	defer stmt.Close()

	for _, f := range finals {
		if _, err := stmt.ExecContext(ctx,
			f.ID, f.DistinctID,
			nullable(f.IDSBR), nullable(f.Query), nullable(f.Name), nullable(f.Category),
			nullableFloat(f.Rating), nullableInt(f.ReviewCount),
			nullable(f.Address), nullable(f.Phone), nullable(f.Website),
			nullableFloat(f.Latitude), nullableFloat(f.Longitude),
			nullable(f.Status), nullable(f.Hours), nullable(f.PlaceType),
			string(f.Validation),
		); err != nil {
			return eris.Wrapf(err, "store: insert final row %d", f.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "store: commit final")
}

// FinalRecords returns the final set in identifier order.
func (s *Store) FinalRecords(ctx context.Context) ([]record.Final, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+finalColumns+" FROM final_listing ORDER BY final_id")
	if err != nil {
		return nil, eris.Wrap(err, "store: query final_listing")
	}
	defer rows.Close()

	var out []record.Final
	for rows.Next() {
		var f record.Final
		var (
			idsbr, query, name, category, address, phone, website sql.NullString
			status, hours, placeType                               sql.NullString
			rating, lat, lon                                       sql.NullFloat64
			reviews                                                sql.NullInt64
			label                                                  string
		)
		if err := rows.Scan(&f.ID, &f.DistinctID, &idsbr, &query, &name, &category,
			&rating, &reviews, &address, &phone, &website, &lat, &lon,
			&status, &hours, &placeType, &label); err != nil {
			return nil, eris.Wrap(err, "store: scan final_listing")
		}

		f.IDSBR, f.Query, f.Name, f.Category = fromNull(idsbr), fromNull(query), fromNull(name), fromNull(category)
		f.Address, f.Phone, f.Website = fromNull(address), fromNull(phone), fromNull(website)
		f.Status, f.Hours, f.PlaceType = fromNull(status), fromNull(hours), fromNull(placeType)
		if rating.Valid {
			f.Rating = &rating.Float64
		}
		if reviews.Valid {
			f.ReviewCount = &reviews.Int64
		}
		if lat.Valid {
			f.Latitude = &lat.Float64
		}
		if lon.Valid {
			f.Longitude = &lon.Float64
		}
		if f.Validation, err = record.ParseLabel(label); err != nil {
			return nil, eris.Wrapf(err, "store: final row %d", f.ID)
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate final_listing")
}
