package apitree

import (
	"path"
	"strings"
)

// Rule names of DefaultRules.
const (
	Any                         = "Any"
	Module                      = "Module"
	RootModule                  = "RootModule"
	ChildModule                 = "ChildModule"
	ImplicitlyImportedModule    = "ImplicitlyImportedModule"
	ImportedModule              = "ImportedModule"
	ExternalModule              = "ExternalModule"
	NamespaceModule             = "NamespaceModule"
	PrivateModule               = "PrivateModule"
	PublicModule                = "PublicModule"
	CircularModule              = "CircularModule"
	ApiPackage                  = "ApiPackage"
	ApiModule                   = "ApiModule"
	Value                       = "Value"
	PrivateValue                = "PrivateValue"
	MagicModuleAttribute        = "MagicModuleAttribute"
	PublicValue                 = "PublicValue"
	FutureAnnotationPlaceholder = "FutureAnnotationPlaceholder"
	ImportedValue               = "ImportedValue"
	DocumentedValue             = "DocumentedValue"
	Excluded                    = "Excluded"
)

// magicAttributes are set by the interpreter on every module.
var magicAttributes = map[string]bool{
	"__name__":     true,
	"__doc__":      true,
	"__package__":  true,
	"__loader__":   true,
	"__spec__":     true,
	"__path__":     true,
	"__file__":     true,
	"__cached__":   true,
	"__builtins__": true,
}

func always(*Symbol) bool { return true }
func never(*Symbol) bool  { return false }

// Not negates p.
func Not(p Predicate) Predicate {
	return func(s *Symbol) bool { return !p(s) }
}

// All holds when every predicate holds.
func All(ps ...Predicate) Predicate {
	return func(s *Symbol) bool {
		for _, p := range ps {
			if !p(s) {
				return false
			}
		}
		return true
	}
}

func isModule(s *Symbol) bool   { return s.IsModule() }
func isRoot(s *Symbol) bool     { return s.IsRoot() }
func isImported(s *Symbol) bool { return s.IsImported() }
func belongs(s *Symbol) bool    { return s.BelongsToNamespace() }
func isPackage(s *Symbol) bool  { return s.IsPackage() }
func revisits(s *Symbol) bool   { return s.Revisits() }
func isPrivate(s *Symbol) bool  { return strings.HasPrefix(s.Name(), "_") }
func isMagic(s *Symbol) bool    { return magicAttributes[s.Name()] }

func isFeature(s *Symbol) bool {
	_, ok := s.Value().(FeatureFlag)
	return ok
}

// containerIsPackage holds when the namespace the symbol was found in is a
// package.
func containerIsPackage(s *Symbol) bool {
	return s.Container() != nil && s.Container().IsPackage()
}

func rootFilename(s *Symbol, _ string) string {
	return path.Join(s.Name(), "index")
}

func moduleFilename(s *Symbol, parentFile string) string {
	return path.Join(path.Dir(parentFile), s.Name(), "index")
}

func valueFilename(s *Symbol, parentFile string) string {
	return path.Join(path.Dir(parentFile), s.Name())
}

// DefaultRules is the classification tree used unless WithRules overrides
// it. Siblings are mutually exclusive; every leaf is concrete.
var DefaultRules = &Rule{
	Name:     Any,
	Abstract: true,
	Refinements: []*Rule{
		{
			Name:     Module,
			Abstract: true,
			When:     isModule,
			Filename: moduleFilename,
			Refinements: []*Rule{
				{
					Name:       RootModule,
					When:       isRoot,
					Documented: always,
					Recurse:    always,
					Filename:   rootFilename,
				},
				{
					Name:     ChildModule,
					Abstract: true,
					When:     Not(isRoot),
					Refinements: []*Rule{
						{
							// Submodules that only appear because some other
							// import loaded them.
							Name:       ImplicitlyImportedModule,
							When:       Not(isImported),
							Documented: never,
							Recurse:    never,
						},
						{
							Name:     ImportedModule,
							Abstract: true,
							When:     isImported,
							Refinements: []*Rule{
								{
									Name:       ExternalModule,
									When:       Not(belongs),
									Documented: never,
									Recurse:    never,
								},
								{
									Name:     NamespaceModule,
									Abstract: true,
									When:     belongs,
									Refinements: []*Rule{
										{
											Name:       PrivateModule,
											When:       isPrivate,
											Documented: never,
											Recurse:    never,
										},
										{
											Name:     PublicModule,
											Abstract: true,
											When:     Not(isPrivate),
											Refinements: []*Rule{
												{
													// A namespace already being expanded higher up.
													Name:       CircularModule,
													When:       revisits,
													Documented: always,
													Recurse:    never,
												},
												{
													Name:       ApiPackage,
													When:       All(Not(revisits), isPackage),
													Documented: always,
													Recurse:    always,
												},
												{
													// Only surfaced directly below a package.
													Name:       ApiModule,
													When:       All(Not(revisits), Not(isPackage)),
													Documented: containerIsPackage,
													Recurse:    containerIsPackage,
												},
											},
										},
									},
								},
							},
						},
					},
				},
			},
		},
		{
			Name:     Value,
			Abstract: true,
			When:     Not(isModule),
			Recurse:  never,
			Filename: valueFilename,
			Refinements: []*Rule{
				{
					Name:       PrivateValue,
					When:       isPrivate,
					Documented: never,
					Refinements: []*Rule{
						{
							Name:       MagicModuleAttribute,
							When:       isMagic,
							Documented: never,
						},
					},
				},
				{
					Name:     PublicValue,
					Abstract: true,
					When:     Not(isPrivate),
					Refinements: []*Rule{
						{
							Name:       FutureAnnotationPlaceholder,
							When:       isFeature,
							Documented: never,
						},
						{
							// Re-exports are public at a package boundary and
							// noise anywhere else.
							Name:       ImportedValue,
							When:       All(Not(isFeature), isImported),
							Documented: containerIsPackage,
						},
						{
							Name:       DocumentedValue,
							When:       All(Not(isFeature), Not(isImported)),
							Documented: always,
						},
					},
				},
			},
		},
	},
}
