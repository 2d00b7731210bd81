package scaffolding

// ModuleTemplate is a named set of files written into a new module.
type ModuleTemplate struct {
	Name        string
	Description string
	Files       []FileTemplate
}

// FileTemplate is one generated file. Path and Content are text/templates
// with [[ ]] delimiters so phtml templates can keep their {{ }} actions.
type FileTemplate struct {
	Path    string
	Content string
}

// TemplateContext holds the values available to file templates.
type TemplateContext struct {
	Module      string
	Vendor      string
	Package     string
	DisplayName string
	Snake       string
	Area        string
	Sequence    []string
	Date        string
}

// GetBuiltinTemplates returns the built-in module templates.
func GetBuiltinTemplates() map[string]ModuleTemplate {
	return map[string]ModuleTemplate{
		"basic":  basicTemplate(),
		"layout": layoutOnlyTemplate(),
		"theme":  themeTemplate(),
	}
}

const manifestContent = `name: [[.Module]]
[[- if .Sequence]]
sequence:
[[- range .Sequence]]
  - [[.]]
[[- end]]
[[- end]]
`

func basicTemplate() ModuleTemplate {
	return ModuleTemplate{
		Name:        "basic",
		Description: "Manifest, a default layout update and a welcome template",
		Files: []FileTemplate{
			{Path: "module.yml", Content: manifestContent},
			{
				Path: "view/[[.Area]]/layout/default.xml",
				Content: `<layout>
    <referenceContainer name="content">
        <block name="[[.Snake]].welcome" template="[[.Module]]::welcome.phtml">
            <arguments>
                <argument name="title">[[.DisplayName]]</argument>
            </arguments>
        </block>
    </referenceContainer>
</layout>
`,
			},
			{
				Path: "view/[[.Area]]/templates/welcome.phtml",
				Content: `<section class="[[.Snake]]-welcome">
    <h2>{{ data "title" }}</h2>
    {{ children }}
</section>
`,
			},
		},
	}
}

func layoutOnlyTemplate() ModuleTemplate {
	return ModuleTemplate{
		Name:        "layout",
		Description: "Manifest and an empty default layout update",
		Files: []FileTemplate{
			{Path: "module.yml", Content: manifestContent},
			{
				Path: "view/[[.Area]]/layout/default.xml",
				Content: `<layout>
</layout>
`,
			},
		},
	}
}

func themeTemplate() ModuleTemplate {
	return ModuleTemplate{
		Name:        "theme",
		Description: "Manifest, page skeleton and header/footer templates",
		Files: []FileTemplate{
			{Path: "module.yml", Content: manifestContent},
			{
				Path: "view/[[.Area]]/layout/default.xml",
				Content: `<layout>
    <container name="root" htmlTag="div" htmlClass="page-wrapper">
        <block name="header" template="[[.Module]]::html/header.phtml">
            <arguments>
                <argument name="title">[[.DisplayName]]</argument>
            </arguments>
        </block>
        <container name="main" htmlTag="main">
            <container name="content"/>
            <container name="sidebar" htmlTag="aside"/>
        </container>
        <block name="footer" template="[[.Module]]::html/footer.phtml"/>
    </container>
</layout>
`,
			},
			{
				Path: "view/[[.Area]]/templates/html/header.phtml",
				Content: `<header><h1>{{ data "title" }}</h1>{{ children }}</header>
`,
			},
			{
				Path: "view/[[.Area]]/templates/html/footer.phtml",
				Content: `<footer>[[.DisplayName]] [[.Date]]</footer>
`,
			},
		},
	}
}
