package fixtures

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "lit-config-")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, dir)
	})

	It("falls back to defaults without a config file", func() {
		cfg, err := LoadConfig(dir, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Extensions).To(Equal(DefaultExtensions))
		Expect(cfg.Build).To(BeEmpty())
		Expect(cfg.Vars).To(BeEmpty())
	})

	It("fails when an explicit config is missing", func() {
		_, err := LoadConfig(dir, filepath.Join(dir, "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})

	It("reads .lit.yaml from the directory", func() {
		writeFixture(dir, ConfigFile,
			"extensions: [c, .py, lua]",
			"build: make -C {{ .WorkDir }}",
			"keepWork: true",
			"vars:",
			"  LLVM_VERSION: \"17.0.6\"",
			"syntaxes:",
			"  - name: lua",
			"    marker: \"--\"",
			"    extensions: [.lua]",
		)

		cfg, err := LoadConfig(dir, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Extensions).To(Equal([]string{".c", ".py", ".lua"}))
		Expect(cfg.Build).To(Equal("make -C {{ .WorkDir }}"))
		Expect(cfg.KeepWork).To(BeTrue())
		Expect(cfg.Vars).To(HaveKeyWithValue("LLVM_VERSION", "17.0.6"))
		Expect(cfg.Syntaxes).To(HaveLen(1))

		registry, err := cfg.Registry()
		Expect(err).NotTo(HaveOccurred())
		Expect(registry.ForPath("a.lua").Marker).To(Equal("--"))
		Expect(registry.ForPath("a.py").Marker).To(Equal("#"))
		Expect(DefaultRegistry.ForPath("a.lua").Marker).To(Equal("//"))
	})

	It("rejects malformed YAML", func() {
		path := writeFixture(dir, "bad.yaml", "extensions: [c", "build: :")
		_, err := LoadConfig(dir, path)
		Expect(err).To(HaveOccurred())
	})

	It("rejects invalid syntaxes", func() {
		cfg := Config{Syntaxes: []Syntax{{Name: "broken"}}}
		_, err := cfg.Registry()
		Expect(err).To(HaveOccurred())
	})

	It("uses the default registry when no syntaxes are configured", func() {
		registry, err := DefaultConfig().Registry()
		Expect(err).NotTo(HaveOccurred())
		Expect(registry).To(BeIdenticalTo(DefaultRegistry))
	})

	It("merges vars and keeps base values not overridden", func() {
		base := Config{Extensions: []string{".c"}, Build: "make", Vars: map[string]string{"A": "1", "B": "2"}}
		merged := MergeConfig(base, Config{Vars: map[string]string{"B": "3"}})
		Expect(merged.Extensions).To(Equal([]string{".c"}))
		Expect(merged.Build).To(Equal("make"))
		Expect(merged.Vars).To(Equal(map[string]string{"A": "1", "B": "3"}))
	})
})
