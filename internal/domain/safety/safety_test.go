package safety_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/corralhq/corral/internal/domain/model"
	"github.com/corralhq/corral/internal/domain/safety"
)

func TestClassifier(t *testing.T) {
	Convey("Given the default classifier", t, func() {
		c := safety.NewClassifier()

		Convey("When the name contains an explicit term", func() {
			v := c.Classify(model.Model{Name: "Nude Portrait Generator"}, nil)

			Convey("Then it should be NSFW with full confidence", func() {
				So(v.IsNSFW, ShouldBeTrue)
				So(v.Confidence, ShouldEqual, 1.0)
				So(v.FlaggedTerms, ShouldContain, "nude")
			})
		})

		Convey("When an explicit term is embedded in a larger word", func() {
			v := c.Classify(model.Model{Name: "Essex Regional Language Model"}, nil)

			Convey("Then word-boundary matching should not flag it", func() {
				So(v.IsNSFW, ShouldBeFalse)
			})
		})

		Convey("When the name hides the term behind CamelCase and delimiters", func() {
			for _, name := range []string{"NudePortraitV2", "nude-portrait_v2", "nude.portrait"} {
				v := c.Classify(model.Model{Name: name}, nil)
				So(v.IsNSFW, ShouldBeTrue)
			}
		})

		Convey("When the model is itself safety tooling", func() {
			v := c.Classify(model.Model{Name: "NSFW Content Detection Classifier"}, nil)

			Convey("Then the self-exemption should win over the explicit term", func() {
				So(v.IsNSFW, ShouldBeFalse)
				So(v.Reasons[0], ShouldContainSubstring, "safety/detection tool")
			})
		})

		Convey("When the provider is a trusted organization", func() {
			v := c.Classify(model.Model{
				Name:     "Mystery Checkpoint",
				Provider: "OpenAI",
				Tags:     []string{"hentai"},
			}, nil)

			Convey("Then it should be cleared before tag scoring runs", func() {
				So(v.IsNSFW, ShouldBeFalse)
				So(v.Reasons[0], ShouldContainSubstring, "trusted organization")
			})
		})

		Convey("When the name matches a general-purpose family", func() {
			for _, name := range []string{
				"Llama 3.1 70B Instruct",
				"Stable Diffusion 2.1",
				"whisper-large-v3",
				"bge-reranker-base",
			} {
				v := c.Classify(model.Model{Name: name, Provider: "someone"}, nil)
				So(v.IsNSFW, ShouldBeFalse)
			}
		})

		Convey("When a single explicit tag matches exactly", func() {
			v := c.Classify(model.Model{
				Name:   "Anime Checkpoint Mix",
				Source: "civitai",
				Tags:   []string{"anime", "hentai"},
			}, nil)

			Convey("Then the tag alone should cross the threshold", func() {
				So(v.IsNSFW, ShouldBeTrue)
				So(v.FlaggedTerms, ShouldContain, "hentai")
			})
		})

		Convey("When a tag only contains a term as a substring", func() {
			v := c.Classify(model.Model{
				Name:   "Anime Checkpoint Mix",
				Source: "civitai",
				Tags:   []string{"nudelsuppe"},
			}, nil)

			Convey("Then exact matching should not flag it", func() {
				So(v.IsNSFW, ShouldBeFalse)
			})
		})

		Convey("When description keywords appear on a high-risk source", func() {
			m := model.Model{
				Name:        "Dreamscape Mix",
				Source:      "civitai",
				Description: "uncensored outputs, NSFW capable, erotic style",
			}
			v := c.Classify(m, nil)

			Convey("Then accumulated keyword weight should cross the threshold", func() {
				So(v.IsNSFW, ShouldBeTrue)
			})

			Convey("But the same description on a mainstream source should not score", func() {
				m.Source = "huggingface"
				v := c.Classify(m, nil)
				So(v.IsNSFW, ShouldBeFalse)
			})
		})

		Convey("When custom keywords are supplied", func() {
			v := c.Classify(model.Model{Name: "Waifu Paradise Mix"}, []string{"waifu paradise"})

			Convey("Then they should extend the explicit name terms", func() {
				So(v.IsNSFW, ShouldBeTrue)
			})
		})

		Convey("When classifying the same input repeatedly", func() {
			m := model.Model{
				Name:        "Dreamscape Mix",
				Source:      "civitai",
				Description: "nsfw capable",
				Tags:        []string{"hentai"},
			}
			first := c.Classify(m, []string{"extra"})

			Convey("Then the verdict should be identical every time", func() {
				for i := 0; i < 10; i++ {
					So(c.Classify(m, []string{"extra"}), ShouldResemble, first)
				}
			})
		})
	})
}

func TestRescan(t *testing.T) {
	Convey("Given a store with stale safety flags", t, func() {
		c := safety.NewClassifier()
		models := []model.Model{
			{Name: "Nude Portrait Generator", IsNSFWFlagged: false, IsFavorite: true},
			{Name: "Essex Regional Language Model", IsNSFWFlagged: true, FlaggedImageURLs: []string{"u"}},
			{Name: "Llama 3 8B", IsNSFWFlagged: false},
		}

		Convey("When rescanning", func() {
			res := c.Rescan(models, nil)

			Convey("Then new unsafe records should be tagged and stale flags cleared", func() {
				So(res.Flagged, ShouldEqual, 1)
				So(res.Cleared, ShouldEqual, 1)
				So(models[0].IsNSFWFlagged, ShouldBeTrue)
				So(models[1].IsNSFWFlagged, ShouldBeFalse)
				So(models[2].IsNSFWFlagged, ShouldBeFalse)
			})

			Convey("Then unrelated user state should be untouched", func() {
				So(models[0].IsFavorite, ShouldBeTrue)
				So(models[1].FlaggedImageURLs, ShouldResemble, []string{"u"})
			})
		})
	})
}
