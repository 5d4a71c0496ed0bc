package identity_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/corralhq/corral/internal/domain/identity"
	"github.com/corralhq/corral/internal/domain/model"
)

func TestKey(t *testing.T) {
	Convey("Given models from different catalogs", t, func() {
		Convey("When name and provider are both present", func() {
			a := model.Model{Name: "GPT-X", Provider: "OpenAI", Source: "huggingface"}
			b := model.Model{Name: "gpt_x", Provider: "openai", Source: "civitai"}

			Convey("Then the keys should match case-insensitively across delimiters", func() {
				So(identity.Key(a), ShouldEqual, identity.Key(b))
			})

			Convey("Then a different provider should produce a different key", func() {
				c := model.Model{Name: "GPT-X", Provider: "Mistral"}
				So(identity.Key(a), ShouldNotEqual, identity.Key(c))
			})
		})

		Convey("When provider is missing but a URL is set", func() {
			a := model.Model{Name: "Flux Dev", URL: "https://civitai.com/models/123"}
			b := model.Model{Name: "Flux Dev", URL: "http://www.civitai.com/models/123/"}

			Convey("Then URL spelling variants should key identically", func() {
				So(identity.Key(a), ShouldEqual, identity.Key(b))
			})
		})

		Convey("When provider is missing and a repo is set", func() {
			a := model.Model{Name: "Llama", Repo: "https://github.com/meta/llama"}

			Convey("Then the repo should drive the key", func() {
				So(identity.Key(a), ShouldEqual, "repo::github.com/meta/llama")
			})
		})

		Convey("When only source and name are available", func() {
			a := model.Model{Name: "Mystery Model", Source: "tensorart"}
			b := model.Model{Name: "Mystery Model", Source: "civitai"}

			Convey("Then different sources should not collide", func() {
				So(identity.Key(a), ShouldNotEqual, identity.Key(b))
			})
		})

		Convey("When the same model appears with messy whitespace", func() {
			a := model.Model{Name: "  Stable-Diffusion   XL ", Provider: "Stability AI"}
			b := model.Model{Name: "stable_diffusion.xl", Provider: "stability-ai"}

			Convey("Then the keys should still match", func() {
				So(identity.Key(a), ShouldEqual, identity.Key(b))
			})
		})
	})
}
