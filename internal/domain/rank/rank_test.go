package rank_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/internal/domain/rank"
)

func int64p(v int64) *int64 { return &v }

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
}

func TestRanker(t *testing.T) {
	Convey("Given a ranker with a fixed clock", t, func() {
		r := rank.New(rank.WithNow(fixedNow))

		Convey("When download counts differ by orders of magnitude", func() {
			small := r.Score(model.Model{ID: "s", Downloads: int64p(100)})
			large := r.Score(model.Model{ID: "l", Downloads: int64p(1_000_000)})

			Convey("Then more downloads should score higher, sublinearly", func() {
				So(large, ShouldBeGreaterThan, small)
				So(large, ShouldBeLessThan, small*4)
			})
		})

		Convey("When a model was updated recently", func() {
			fresh := r.Score(model.Model{ID: "f", Downloads: int64p(1000), UpdatedAt: "2026-02-20"})
			stale := r.Score(model.Model{ID: "st", Downloads: int64p(1000), UpdatedAt: "2024-01-01"})

			Convey("Then recency should boost it", func() {
				So(fresh, ShouldBeGreaterThan, stale)
			})
		})

		Convey("When a model is a favorite", func() {
			plain := r.Score(model.Model{ID: "p", Downloads: int64p(1000)})
			favorite := r.Score(model.Model{ID: "fav", Downloads: int64p(1000), IsFavorite: true})

			Convey("Then it should outrank its twin", func() {
				So(favorite, ShouldBeGreaterThan, plain)
			})
		})

		Convey("When only per-origin stats carry downloads", func() {
			m := model.Model{ID: "o", SourceStats: map[string]model.SourceStat{
				"huggingface": {Downloads: int64p(400)},
				"civitai":     {Downloads: int64p(600)},
			}}

			Convey("Then they should sum into the score", func() {
				So(r.Score(m), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When scores saturate", func() {
			m := model.Model{ID: "max", Downloads: int64p(1 << 60), IsFavorite: true, UpdatedAt: "2026-02-28"}

			Convey("Then the score should stay within bounds", func() {
				So(r.Score(m), ShouldBeLessThanOrEqualTo, 100)
			})
		})
	})
}

func TestRankerSort(t *testing.T) {
	Convey("Given a mixed catalog", t, func() {
		r := rank.New(rank.WithNow(fixedNow))
		models := []model.Model{
			{ID: "c", Name: "Gamma", Downloads: int64p(10)},
			{ID: "a", Name: "Alpha", Downloads: int64p(1000)},
			{ID: "b", Name: "Beta", Downloads: int64p(10), IsFavorite: true},
		}

		Convey("When sorted", func() {
			r.Sort(models)

			Convey("Then popularity should order the listing", func() {
				So(models[0].Name, ShouldEqual, "Beta")
				So(models[1].Name, ShouldEqual, "Alpha")
				So(models[2].Name, ShouldEqual, "Gamma")
			})
		})

		Convey("When scores tie", func() {
			tied := []model.Model{
				{ID: "z", Name: "Zeta", Downloads: int64p(50)},
				{ID: "e", Name: "Eta", Downloads: int64p(50)},
			}
			r.Sort(tied)

			Convey("Then names should break the tie", func() {
				So(tied[0].Name, ShouldEqual, "Eta")
				So(tied[1].Name, ShouldEqual, "Zeta")
			})
		})
	})
}
