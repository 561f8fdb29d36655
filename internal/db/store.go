package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/homelens/homelens/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type ListParams struct {
	Query          string
	QueryEmbedding []float32
	Outcode        string
	MinScore       int
	MaxScore       int
	MinPrice       int
	MaxPrice       int
	PropertyType   string
	Limit          int
	Offset         int
	SortBy         string // "newest" (default), "score", "price_asc", "price_desc"
}

type ListResult struct {
	Reports []models.Report `json:"reports"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// selectCols is the comprehensive column list for all report queries.
const selectCols = `id, listing_url, address, outcode, property_type, tenure, agent,
	price, bedrooms, bathrooms, floor_area_sqm, description, latitude, longitude,
	portal_added_on, added_date_source, time_on_market_days,
	price_history, price_data_quality, area_stats, area_price_per_sqm, epc, amenities, comparables,
	scores, preferences, ai_summary, risk_flags, tags, evidence_json,
	fetched_at, created_at, updated_at`

func scanReport(scan func(dest ...interface{}) error) (models.Report, error) {
	var r models.Report
	var portalAddedOn *time.Time
	var priceHistoryRaw, scoresRaw, preferencesRaw []byte
	var areaStatsRaw, epcRaw, amenitiesRaw, comparablesRaw, evidenceRaw []byte

	err := scan(
		&r.ID, &r.ListingURL, &r.Address, &r.Outcode, &r.PropertyType, &r.Tenure, &r.Agent,
		&r.Price, &r.Bedrooms, &r.Bathrooms, &r.FloorAreaSqM, &r.Description, &r.Latitude, &r.Longitude,
		&portalAddedOn, &r.AddedDateSource, &r.TimeOnMarketDays,
		&priceHistoryRaw, &r.PriceDataQuality, &areaStatsRaw, &r.AreaPricePerSqM, &epcRaw, &amenitiesRaw, &comparablesRaw,
		&scoresRaw, &preferencesRaw, &r.AISummary, &r.RiskFlags, &r.Tags, &evidenceRaw,
		&r.FetchedAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return r, err
	}

	if portalAddedOn != nil {
		formatted := portalAddedOn.Format("2006-01-02")
		r.PortalAddedOn = &formatted
	}
	if len(priceHistoryRaw) > 0 {
		_ = json.Unmarshal(priceHistoryRaw, &r.PriceHistory)
	}
	if len(areaStatsRaw) > 0 {
		_ = json.Unmarshal(areaStatsRaw, &r.AreaStats)
	}
	if len(epcRaw) > 0 {
		_ = json.Unmarshal(epcRaw, &r.EPC)
	}
	if len(amenitiesRaw) > 0 {
		_ = json.Unmarshal(amenitiesRaw, &r.Amenities)
	}
	if len(comparablesRaw) > 0 {
		_ = json.Unmarshal(comparablesRaw, &r.Comparables)
	}
	if len(scoresRaw) > 0 {
		_ = json.Unmarshal(scoresRaw, &r.Scores)
	}
	if len(preferencesRaw) > 0 {
		_ = json.Unmarshal(preferencesRaw, &r.Preferences)
	}
	if len(evidenceRaw) > 0 {
		_ = json.Unmarshal(evidenceRaw, &r.EvidenceJSON)
	}

	return r, nil
}

// buildListWhere builds the filter clause for ListReports with positional
// args; the next free arg index is returned for the sort/pagination args.
func buildListWhere(params ListParams) (string, []interface{}, int) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND (search_vector @@ plainto_tsquery('english', $%d) OR address ILIKE '%%' || $%d || '%%')", argIdx, argIdx)
		args = append(args, params.Query)
		argIdx++
	}
	if params.Outcode != "" {
		where += fmt.Sprintf(" AND outcode = $%d", argIdx)
		args = append(args, strings.ToUpper(strings.TrimSpace(params.Outcode)))
		argIdx++
	}
	if params.PropertyType != "" {
		where += fmt.Sprintf(" AND property_type ILIKE $%d", argIdx)
		args = append(args, params.PropertyType)
		argIdx++
	}
	if params.MinScore > 0 {
		where += fmt.Sprintf(" AND overall_score >= $%d", argIdx)
		args = append(args, params.MinScore)
		argIdx++
	}
	if params.MaxScore > 0 {
		where += fmt.Sprintf(" AND overall_score <= $%d", argIdx)
		args = append(args, params.MaxScore)
		argIdx++
	}
	if params.MinPrice > 0 {
		where += fmt.Sprintf(" AND price >= $%d", argIdx)
		args = append(args, params.MinPrice)
		argIdx++
	}
	if params.MaxPrice > 0 {
		where += fmt.Sprintf(" AND price <= $%d", argIdx)
		args = append(args, params.MaxPrice)
		argIdx++
	}

	return where, args, argIdx
}

func (s *Store) ListReports(ctx context.Context, params ListParams) (*ListResult, error) {
	where, args, argIdx := buildListWhere(params)

	// 2. Count total
	var total int
	countSQL := "SELECT COUNT(*) FROM reports " + where
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	// 3. Select with sorting
	selectSQL := fmt.Sprintf("SELECT %s FROM reports %s", selectCols, where)

	switch params.SortBy {
	case "score":
		selectSQL += " ORDER BY overall_score DESC, created_at DESC"
	case "price_asc":
		selectSQL += " ORDER BY price ASC, created_at DESC"
	case "price_desc":
		selectSQL += " ORDER BY price DESC, created_at DESC"
	default: // "newest", plus semantic ranking when an embedding is supplied
		if len(params.QueryEmbedding) > 0 {
			vectorArg := argIdx
			args = append(args, pgvector.NewVector(params.QueryEmbedding))
			argIdx++

			selectSQL += fmt.Sprintf(`
				ORDER BY
					CASE WHEN embedding IS NULL THEN 1 ELSE 0 END ASC,
					COALESCE(1 - (embedding <=> $%d), -1) DESC,
					created_at DESC
			`, vectorArg)
		} else {
			selectSQL += " ORDER BY created_at DESC"
		}
	}

	// Pagination
	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, params.Limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	if reports == nil {
		reports = []models.Report{}
	}

	return &ListResult{
		Reports: reports,
		Total:   total,
		Limit:   params.Limit,
		Offset:  params.Offset,
	}, nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*models.Report, error) {
	sql := fmt.Sprintf("SELECT %s FROM reports WHERE id = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, id)

	r, err := scanReport(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	return &r, nil
}

func (s *Store) GetReportByURL(ctx context.Context, listingURL string) (*models.Report, error) {
	sql := fmt.Sprintf("SELECT %s FROM reports WHERE listing_url = $1", selectCols)
	row := s.pool.QueryRow(ctx, sql, listingURL)

	r, err := scanReport(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	return &r, nil
}

// SaveReport upserts on listing_url and fills in the generated ID and
// timestamps on the passed report.
func (s *Store) SaveReport(ctx context.Context, r *models.Report, embedding []float32) error {
	priceHistory, err := json.Marshal(r.PriceHistory)
	if err != nil {
		return fmt.Errorf("marshal price history: %w", err)
	}
	scores, err := json.Marshal(r.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	preferences, _ := json.Marshal(r.Preferences)
	areaStats, _ := json.Marshal(r.AreaStats)
	epc, _ := json.Marshal(r.EPC)
	amenities, _ := json.Marshal(r.Amenities)
	comparables, _ := json.Marshal(r.Comparables)
	evidence, _ := json.Marshal(r.EvidenceJSON)

	var embeddingArg interface{}
	if len(embedding) > 0 {
		embeddingArg = pgvector.NewVector(embedding)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO reports (
			listing_url, address, outcode, property_type, tenure, agent,
			price, bedrooms, bathrooms, floor_area_sqm, description, latitude, longitude,
			portal_added_on, added_date_source, time_on_market_days,
			price_history, price_data_quality, area_stats, area_price_per_sqm, epc, amenities, comparables,
			scores, preferences, ai_summary, risk_flags, tags, evidence_json,
			embedding, overall_score, fetched_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23,
			$24, $25, $26, $27, $28, $29,
			$30, $31, $32
		)
		ON CONFLICT (listing_url) DO UPDATE SET
			address = EXCLUDED.address,
			outcode = EXCLUDED.outcode,
			property_type = EXCLUDED.property_type,
			tenure = EXCLUDED.tenure,
			agent = EXCLUDED.agent,
			price = EXCLUDED.price,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			floor_area_sqm = EXCLUDED.floor_area_sqm,
			description = EXCLUDED.description,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			portal_added_on = EXCLUDED.portal_added_on,
			added_date_source = EXCLUDED.added_date_source,
			time_on_market_days = EXCLUDED.time_on_market_days,
			price_history = EXCLUDED.price_history,
			price_data_quality = EXCLUDED.price_data_quality,
			area_stats = EXCLUDED.area_stats,
			area_price_per_sqm = EXCLUDED.area_price_per_sqm,
			epc = EXCLUDED.epc,
			amenities = EXCLUDED.amenities,
			comparables = EXCLUDED.comparables,
			scores = EXCLUDED.scores,
			preferences = EXCLUDED.preferences,
			ai_summary = EXCLUDED.ai_summary,
			risk_flags = EXCLUDED.risk_flags,
			tags = EXCLUDED.tags,
			evidence_json = EXCLUDED.evidence_json,
			embedding = EXCLUDED.embedding,
			overall_score = EXCLUDED.overall_score,
			fetched_at = EXCLUDED.fetched_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`,
		r.ListingURL, r.Address, r.Outcode, r.PropertyType, r.Tenure, r.Agent,
		r.Price, r.Bedrooms, r.Bathrooms, r.FloorAreaSqM, r.Description, r.Latitude, r.Longitude,
		r.PortalAddedOn, r.AddedDateSource, r.TimeOnMarketDays,
		priceHistory, r.PriceDataQuality, areaStats, r.AreaPricePerSqM, epc, amenities, comparables,
		scores, preferences, r.AISummary, r.RiskFlags, r.Tags, evidence,
		embeddingArg, r.Scores.Overall, r.FetchedAt,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert failed: %w", err)
	}

	return nil
}

// UpdateScores rewrites the score breakdown of an existing report; the
// admin rescore job uses it after a weights change.
func (s *Store) UpdateScores(ctx context.Context, id string, scores interface{}, overall int) error {
	payload, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE reports SET scores = $2, overall_score = $3, updated_at = NOW() WHERE id = $1
	`, id, payload, overall)
	return err
}

func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reports").Scan(&total)
	stats["total"] = total

	var outcodes int
	s.pool.QueryRow(ctx, "SELECT COUNT(DISTINCT outcode) FROM reports WHERE outcode != ''").Scan(&outcodes)
	stats["outcodes"] = outcodes

	var meanScore *float64
	s.pool.QueryRow(ctx, "SELECT AVG(overall_score) FROM reports").Scan(&meanScore)
	if meanScore != nil {
		stats["mean_score"] = *meanScore
	}

	var withAddedDate int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reports WHERE portal_added_on IS NOT NULL").Scan(&withAddedDate)
	stats["with_added_date"] = withAddedDate

	sourceCounts := map[string]int{}
	rows, err := s.pool.Query(ctx, "SELECT added_date_source, COUNT(*) FROM reports GROUP BY added_date_source")
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var source string
			var count int
			if scanErr := rows.Scan(&source, &count); scanErr == nil {
				sourceCounts[source] = count
			}
		}
	}
	stats["added_date_source_counts"] = sourceCounts

	return stats, nil
}

// Refresh runs

func (s *Store) StartRefreshRun(ctx context.Context) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO refresh_runs DEFAULT VALUES RETURNING id
	`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert refresh run: %w", err)
	}
	return id, nil
}

func (s *Store) FinishRefreshRun(ctx context.Context, id, status, detail string, districts, rowsScanned int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_runs
		SET finished_at = NOW(), status = $2, detail = $3, districts = $4, rows_scanned = $5
		WHERE id = $1
	`, id, status, detail, districts, rowsScanned)
	return err
}

func (s *Store) ListRefreshRuns(ctx context.Context, limit int) ([]models.RefreshRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, started_at, finished_at, status, detail, districts, rows_scanned
		FROM refresh_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RefreshRun
	for rows.Next() {
		var run models.RefreshRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.Detail, &run.Districts, &run.RowsScanned); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// MeanPricePerSqM is the mean asking £/sqm across stored reports in an
// outcode whose floor area is known; the value scorer prefers it over the
// raw sold-price mean. Zero means too little data to compute one.
func (s *Store) MeanPricePerSqM(ctx context.Context, outcode string) (float64, error) {
	var mean *float64
	err := s.pool.QueryRow(ctx, `
		SELECT AVG(price / floor_area_sqm) FROM reports
		WHERE outcode = $1 AND floor_area_sqm > 0 AND price > 0
	`, strings.ToUpper(strings.TrimSpace(outcode))).Scan(&mean)
	if err != nil {
		return 0, fmt.Errorf("area price per sqm: %w", err)
	}
	if mean == nil {
		return 0, nil
	}
	return *mean, nil
}

// ListOutcodes returns the distinct outcodes across all reports; the
// land-registry refresh walks them.
func (s *Store) ListOutcodes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT DISTINCT outcode FROM reports WHERE outcode != '' ORDER BY outcode")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcodes []string
	for rows.Next() {
		var outcode string
		if err := rows.Scan(&outcode); err == nil {
			outcodes = append(outcodes, outcode)
		}
	}
	return outcodes, rows.Err()
}

// ListReportIDs returns every report id; the rescore job iterates them.
func (s *Store) ListReportIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "SELECT id FROM reports ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, rows.Err()
}
