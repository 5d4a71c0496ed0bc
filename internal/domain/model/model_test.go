package model_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/corralhq/corral/internal/domain/model"
)

func TestPricingEntry(t *testing.T) {
	Convey("Given pricing entries", t, func() {
		Convey("When the unit mentions tokens, requests or calls", func() {
			units := []string{"1M tokens", "per request", "API call", "1k Tokens"}

			Convey("Then they should be API shaped", func() {
				for _, u := range units {
					So(model.PricingEntry{Unit: u}.IsAPIShaped(), ShouldBeTrue)
				}
			})
		})

		Convey("When the unit is subscription style", func() {
			units := []string{"month", "seat/month", "year", ""}

			Convey("Then they should not be API shaped", func() {
				for _, u := range units {
					So(model.PricingEntry{Unit: u}.IsAPIShaped(), ShouldBeFalse)
				}
			})
		})
	})
}

func TestModelClone(t *testing.T) {
	Convey("Given a model with nested state", t, func() {
		yes := true
		downloads := int64(1200)
		flat := 20.0
		m := model.Model{
			ID:       "m1",
			Name:     "GPT-X",
			Provider: "OpenAI",
			Tags:     []string{"llm", "chat"},
			License:  model.License{Name: "MIT", Type: model.LicenseOSI, CommercialUse: &yes},
			Pricing:  []model.PricingEntry{{Unit: "month", Flat: &flat}},
			Downloads: &downloads,
			SourceStats: map[string]model.SourceStat{
				"huggingface": {Downloads: &downloads},
			},
		}

		Convey("When cloning and mutating the clone", func() {
			c := m.Clone()
			c.Tags[0] = "changed"
			*c.Downloads = 99
			*c.License.CommercialUse = false
			*c.Pricing[0].Flat = 0
			stat := c.SourceStats["huggingface"]
			*stat.Downloads = 7

			Convey("Then the original should be unaffected", func() {
				So(m.Tags[0], ShouldEqual, "llm")
				So(*m.Downloads, ShouldEqual, 1200)
				So(*m.License.CommercialUse, ShouldBeTrue)
				So(*m.Pricing[0].Flat, ShouldEqual, 20.0)
				So(*m.SourceStats["huggingface"].Downloads, ShouldEqual, 1200)
			})
		})
	})
}

func TestJobStatus(t *testing.T) {
	Convey("Given job statuses", t, func() {
		Convey("Then only completed, failed and cancelled should be terminal", func() {
			So(model.JobPending.Terminal(), ShouldBeFalse)
			So(model.JobProcessing.Terminal(), ShouldBeFalse)
			So(model.JobCompleted.Terminal(), ShouldBeTrue)
			So(model.JobFailed.Terminal(), ShouldBeTrue)
			So(model.JobCancelled.Terminal(), ShouldBeTrue)
		})
	})
}
