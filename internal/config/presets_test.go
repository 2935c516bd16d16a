package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/orthoflow/orthoflow/internal/config"
)

var _ = Describe("presets", func() {
	Context("resolve", func() {
		It("returns the requested preset", func() {
			p := config.DefaultPresets().Resolve(config.RobustPreset)
			Expect(p.Name).To(Equal(config.RobustPreset))
			Expect(p.Options).To(HaveKeyWithValue("force-gps", true))
			Expect(p.Options).To(HaveKeyWithValue("matcher-distance", 5))
		})

		It("falls back to the default preset for unknown names", func() {
			p := config.DefaultPresets().Resolve("padrao")
			Expect(p.Name).To(Equal(config.DefaultPreset))
			Expect(p.Options).To(HaveKeyWithValue("min-num-features", 10000))
		})

		It("returns a copy of the options", func() {
			presets := config.DefaultPresets()
			p := presets.Resolve(config.FastPreset)
			p.Options["name"] = "Project_x"
			Expect(presets[config.FastPreset]).ToNot(HaveKey("name"))
		})

		It("disables auxiliary outputs in every built-in preset", func() {
			for _, name := range config.DefaultPresets().Names() {
				opts := config.DefaultPresets().Resolve(name).Options
				Expect(opts).To(HaveKeyWithValue("dsm", false), name)
				Expect(opts).To(HaveKeyWithValue("dtm", false), name)
				Expect(opts).To(HaveKeyWithValue("skip-3dmodel", true), name)
				Expect(opts).To(HaveKeyWithValue("skip-report", true), name)
			}
		})
	})

	Context("load", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("returns the built-in presets without a file", func() {
			presets, err := config.LoadPresets("")
			Expect(err).To(BeNil())
			Expect(presets.Names()).To(Equal([]string{"default", "fast", "high", "robust"}))
		})

		It("merges presets from a yaml file", func() {
			file := filepath.Join(dir, "presets.yaml")
			content := `
high:
  feature-quality: ultra
  min-num-features: 20000
survey:
  feature-quality: low
`
			Expect(os.WriteFile(file, []byte(content), 0o600)).To(Succeed())

			presets, err := config.LoadPresets(file)
			Expect(err).To(BeNil())
			Expect(presets.Names()).To(ContainElements("survey", "default", "high"))

			high := presets.Resolve(config.HighPreset)
			Expect(high.Options).To(HaveKeyWithValue("feature-quality", "ultra"))
			Expect(high.Options).To(HaveKeyWithValue("min-num-features", float64(20000)))
			Expect(high.Options).ToNot(HaveKey("dsm"))
		})

		It("fails on an empty preset", func() {
			file := filepath.Join(dir, "presets.yaml")
			Expect(os.WriteFile(file, []byte("empty: {}\n"), 0o600)).To(Succeed())

			_, err := config.LoadPresets(file)
			Expect(err).ToNot(BeNil())
		})

		It("fails on a missing file", func() {
			_, err := config.LoadPresets(filepath.Join(dir, "missing.yaml"))
			Expect(err).ToNot(BeNil())
		})
	})
})
