package quest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var questColumnNames = []string{
	"id", "place_id", "name", "description", "category",
	"latitude", "longitude", "reward_point", "completion_count", "is_active", "metadata",
	"p_id", "p_name", "p_category", "p_district", "p_address", "p_description", "p_image_url", "p_metadata",
}

func newMockRepository(t *testing.T) (*RepositoryImpl, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRepository(mock, logger), mock
}

func ptr[T any](v T) *T { return &v }

func questRow(id int64, placeID, name, category string, lat, lon float64) []any {
	return []any{
		id, placeID, name, "desc " + name, category,
		ptr(lat), ptr(lon), 100, 12, true, []byte(`{}`),
		placeID, name + " place", category, "Jongno-gu", "Seoul", "", "https://img/" + placeID, []byte(`{"tags":["night_view"]}`),
	}
}

func TestRepositoryImpl_GetQuestByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`FROM quests q\s+LEFT JOIN places p ON p.id = q.place_id\s+WHERE q.id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(pgxmock.NewRows(questColumnNames).AddRow(questRow(7, "place-7", "Gyeongbokgung", "history", 37.5796, 126.9770)...))

		q, err := repo.GetQuestByID(context.Background(), 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), q.ID)
		assert.Equal(t, "place-7", q.PlaceID)
		assert.Equal(t, "Jongno-gu", q.District)
		assert.Equal(t, "https://img/place-7", q.PlaceImageURL)
		require.NotNil(t, q.Place)
		assert.NotNil(t, q.Place.Metadata["tags"])
		assert.Nil(t, q.Metadata)
		assert.True(t, q.HasCoordinates())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`WHERE q.id = \$1`).
			WithArgs(int64(404)).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetQuestByID(context.Background(), 404)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoryImpl_ListQuestsNear(t *testing.T) {
	repo, mock := newMockRepository(t)

	cols := append(append([]string{}, questColumnNames...), "distance_km")
	rows := pgxmock.NewRows(cols).
		AddRow(append(questRow(1, "p1", "Gwanghwamun", "landmark", 37.5759, 126.9769), 0.4)...).
		AddRow(append(questRow(2, "p2", "Bukchon", "culture", 37.5826, 126.9830), 0.7)...)

	mock.ExpectQuery(`AS distance_km .* <= \$3\s+ORDER BY distance_km\s+LIMIT \$4`).
		WithArgs(37.5796, 126.9770, 5.0, 50).
		WillReturnRows(rows)

	quests, err := repo.ListQuestsNear(context.Background(), 37.5796, 126.9770, 5.0, 50)
	require.NoError(t, err)
	require.Len(t, quests, 2)
	require.NotNil(t, quests[0].DistanceKm)
	assert.Equal(t, 0.4, *quests[0].DistanceKm)
	assert.Equal(t, "Bukchon", quests[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryImpl_ListActiveQuests_Error(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`WHERE q.is_active = TRUE\s+ORDER BY q.id\s+LIMIT \$1`).
		WithArgs(50).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.ListActiveQuests(context.Background(), 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list active quests")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryImpl_GetUserCompletedQuests(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`FROM user_quests uq .* uq.status = 'completed'`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"quest_id", "category"}).
			AddRow(int64(3), "history").
			AddRow(int64(9), ""))

	completed, err := repo.GetUserCompletedQuests(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{3: "history", 9: ""}, completed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryImpl_GetPlaceByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`FROM places\s+WHERE id = \$1`).
			WithArgs("place-1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "name", "category", "district", "address", "description", "image_url", "latitude", "longitude", "metadata"}).
				AddRow("place-1", "N Seoul Tower", "전망대", "Yongsan-gu", "", "야경 명소", "https://img/1", ptr(37.5512), ptr(126.9882), []byte(`{"night_view":true}`)))

		p, err := repo.GetPlaceByID(context.Background(), "place-1")
		require.NoError(t, err)
		assert.Equal(t, "Yongsan-gu", p.District)
		assert.Equal(t, true, p.Metadata["night_view"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(`FROM places\s+WHERE id = \$1`).
			WithArgs("missing").
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetPlaceByID(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepositoryImpl_GetFirstQuestForPlace(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectQuery(`WHERE q.place_id = \$1\s+ORDER BY q.id\s+LIMIT 1`).
		WithArgs("place-2").
		WillReturnRows(pgxmock.NewRows(questColumnNames).AddRow(questRow(21, "place-2", "Namsan", "landmark", 37.5512, 126.9882)...))

	q, err := repo.GetFirstQuestForPlace(context.Background(), "place-2")
	require.NoError(t, err)
	assert.Equal(t, int64(21), q.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryImpl_SearchQuestsByEmbedding(t *testing.T) {
	repo, mock := newMockRepository(t)

	cols := append(append([]string{}, questColumnNames...), "rag_text", "similarity")
	mock.ExpectQuery(`FROM quest_text_embeddings e .* >= \$2\s+ORDER BY e.embedding <=> \$1::vector\s+LIMIT \$3`).
		WithArgs("[0.5,0.25]", 0.6, 40).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(append(questRow(5, "p5", "Jogyesa", "temple", 37.5740, 126.9816), "[Quest] Jogyesa", 0.82)...))

	matches, err := repo.SearchQuestsByEmbedding(context.Background(), []float32{0.5, 0.25}, 0.6, 40)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, int64(5), matches[0].Quest.ID)
	assert.Equal(t, 0.82, matches[0].Similarity)
	assert.Equal(t, "[Quest] Jogyesa", matches[0].RAGText)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryImpl_UpsertQuestEmbedding(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectExec(`INSERT INTO quest_text_embeddings .* ON CONFLICT \(quest_id\) DO UPDATE`).
		WithArgs(int64(5), "[Quest] Jogyesa", "[1,0]").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.UpsertQuestEmbedding(context.Background(), 5, "[Quest] Jogyesa", []float32{1, 0})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
