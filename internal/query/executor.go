package query

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/filter"
)

// Querier es el subconjunto de una conexión pgx que necesita el ejecutor.
// *pgxpool.Conn lo satisface; la conexión ya viene fijada al schema del
// tenant por el pool manager, por lo que las queries nunca califican
// tablas con schema.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// List ejecuta la consulta de listado de la entidad con los predicados
// compilados y la paginación dada. Retorna las filas como mapas
// columna→valor más el total sin paginar.
func List(ctx context.Context, q Querier, entity string, preds []filter.Predicate, page Page) ([]map[string]any, int64, error) {
	table, err := filter.TableFor(entity)
	if err != nil {
		return nil, 0, apperrors.ErrRouteNotFound.WithDetail(err.Error())
	}

	where, args := filter.ToSQL(preds, 1)

	var total int64
	countSQL := "SELECT COUNT(*) FROM " + table
	if where != "" {
		countSQL += " WHERE " + where
	}
	if err := q.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	listSQL, listArgs := buildListSQL(table, where, args, page)
	rows, err := q.Query(ctx, listSQL, listArgs...)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	out := make([]map[string]any, 0, page.Limit)
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, 0, mapError(err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return out, total, nil
}

// Get recupera un registro por id. Id inexistente es RECORD_NOT_FOUND.
func Get(ctx context.Context, q Querier, entity, id string) (map[string]any, error) {
	table, err := filter.TableFor(entity)
	if err != nil {
		return nil, apperrors.ErrRouteNotFound.WithDetail(err.Error())
	}

	rows, err := q.Query(ctx, "SELECT * FROM "+table+" WHERE id = $1 LIMIT 1", id)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, mapError(err)
		}
		return nil, apperrors.ErrRecordNotFound
	}
	return scanRow(rows)
}

// buildListSQL arma el SELECT paginado. Los nombres de tabla, columna de
// orden y dirección ya pasaron por los allow-lists; solo los valores van
// como argumentos posicionales.
func buildListSQL(table, where string, args []any, page Page) (string, []any) {
	sql := "SELECT * FROM " + table
	if where != "" {
		sql += " WHERE " + where
	}
	sql += " ORDER BY " + page.SortColumn + " " + page.Order

	n := len(args)
	sql += " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2)
	out := make([]any, 0, n+2)
	out = append(out, args...)
	out = append(out, page.Limit, page.Offset)
	return sql, out
}

// scanRow materializa la fila actual como mapa columna→valor, con escaneo
// dinámico de columnas (las tablas de tenant pueden ganar columnas entre
// versiones de migración).
func scanRow(rows pgx.Rows) (map[string]any, error) {
	cols := rows.FieldDescriptions()
	vals := make([]any, len(cols))
	for i := range vals {
		vals[i] = new(any)
	}
	if err := rows.Scan(vals...); err != nil {
		return nil, err
	}

	record := make(map[string]any, len(cols))
	for i, col := range cols {
		record[string(col.Name)] = normalizeValue(*(vals[i].(*any)))
	}
	return record, nil
}

// normalizeValue convierte tipos del driver a representaciones JSON-aptas.
func normalizeValue(v any) any {
	if b, ok := v.([16]byte); ok {
		return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
	}
	return v
}

// mapError traduce errores del driver a la taxonomía propia. Esta es la
// única frontera donde se interpretan errores crudos del datastore; el
// texto original nunca llega al cliente.
func mapError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperrors.ErrRecordNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperrors.ErrDatabaseUnavailable.WithCause(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Clases 08 (conexión), 53 (recursos) y 57 (intervención del
		// operador) son indisponibilidad transitoria; el resto es bug
		// nuestro o del DDL.
		if len(pgErr.Code) >= 2 {
			switch pgErr.Code[:2] {
			case "08", "53", "57":
				return apperrors.ErrDatabaseUnavailable.WithCause(err)
			}
		}
		return apperrors.ErrInternalServerError.WithCause(err)
	}
	return apperrors.ErrDatabaseUnavailable.WithCause(err)
}
