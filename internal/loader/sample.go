package loader

import (
	"fmt"
	"os"
	"path/filepath"
)

// SampleName is the file written when the corpus directory is empty.
const SampleName = "sample_civil_code.txt"

const sampleCivilCode = `Гражданский кодекс Республики Казахстан

Статья 1. Основные начала гражданского законодательства
1. Гражданское законодательство основывается на признании равенства участников регулируемых им отношений, неприкосновенности собственности, свободы договора, недопустимости произвольного вмешательства кого-либо в частные дела, необходимости беспрепятственного осуществления гражданских прав, обеспечения восстановления нарушенных прав, их судебной защиты.

Статья 2. Отношения, регулируемые гражданским законодательством
1. Гражданское законодательство определяет правовое положение участников гражданского оборота, основания возникновения и порядок осуществления права собственности и других вещных прав, исключительных прав на результаты интеллектуальной деятельности (интеллектуальной собственности), регулирует договорные и иные обязательства, а также другие имущественные и связанные с ними личные неимущественные отношения.

Статья 3. Гражданское законодательство и нормы международного права
1. Если международным договором, ратифицированным Республикой Казахстан, установлены иные правила, чем те, которые предусмотрены гражданским законодательством, то применяются правила международного договора.
`

// SampleDocument returns the built-in excerpt of the Civil Code.
func SampleDocument() Document {
	return Document{Name: SampleName, Content: sampleCivilCode, Encoding: "utf-8", Format: "text"}
}

// WriteSample stores the sample document in dir and returns it.
func WriteSample(dir string) (Document, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Document{}, fmt.Errorf("create data dir: %w", err)
	}
	doc := SampleDocument()
	if err := os.WriteFile(filepath.Join(dir, SampleName), []byte(doc.Content), 0o644); err != nil {
		return Document{}, fmt.Errorf("write sample: %w", err)
	}
	return doc, nil
}
