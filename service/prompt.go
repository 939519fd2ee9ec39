package service

import (
	"fmt"
	"strings"
)

const analysisSystemPrompt = `Ты формируешь автоматический предварительный отчёт по договору.
Сервис НЕ является юридической консультацией.

Запрещено:
- рекомендации ("следует", "рекомендуется", "нужно сделать")
- оценка законности ("незаконно", "нарушает")
- выводы о выгоде/невыгоде

Разрешено:
- нейтральные наблюдения ("обратите внимание", "может содержать риск", "требует дополнительной проверки", "отсутствует раздел")

Формат ответа: ТОЛЬКО валидный JSON. Без Markdown. Без комментариев. Без лишних полей.`

// reportTemplateExample shows the model the exact field layout it has to fill.
const reportTemplateExample = `{
  "cover": {
    "contract_type": "Договор оказания услуг",
    "analysis_date": "2026-01-21",
    "pages": 2,
    "overall_status": "Средний уровень внимания"
  },
  "summary": [
    "Обратите внимание на сроки оказания услуг и порядок согласования этапов.",
    "Может содержать риск из-за отсутствия/неясности порядка приёмки результата.",
    "Обратите внимание на условия оплаты (сроки, основания для удержаний, штрафы).",
    "Требует дополнительной проверки: условия ответственности и её ограничения.",
    "Обратите внимание на условия расторжения и сроки уведомления."
  ],
  "risk_map": [
    {
      "category": "сроки",
      "description": "Сроки выполнения сформулированы неоднозначно, механизм продления/переноса требует дополнительной проверки.",
      "clause_ref": "—"
    }
  ],
  "atypical": [
    {
      "quote": "Исполнитель вправе изменять условия оказания услуг в одностороннем порядке…",
      "note": "Нетипично: одностороннее изменение условий может требовать дополнительной проверки."
    }
  ],
  "contradictions": [
    {
      "description": "В разных пунктах указаны разные сроки оплаты (например, 5 и 10 рабочих дней).",
      "clause_refs": ["—", "—"]
    }
  ],
  "duties_balance": {
    "customer_count": 0,
    "provider_count": 0,
    "note": "Распределение обязанностей сторон требует дополнительной проверки."
  },
  "needs_specialist": [
    {
      "item": "Сложная формулировка ответственности/штрафов требует проверки специалистом.",
      "clause_ref": "—"
    }
  ],
  "missing_sections": ["форс-мажор"],
  "disclaimer": "Отчёт сформирован автоматически и не является юридической консультацией."
}`

const fillingRules = `Сформируй отчёт строго по структуре и типам, как в примере JSON.
Правила заполнения:
- summary: строго 5–7 пунктов.
- clause_ref, если неизвестно: ставь "—".
- risk_map/atypical/contradictions/needs_specialist/missing_sections могут быть пустыми, но старайся найти хотя бы 2–4 элемента в risk_map, если в тексте есть материал.
- risk_map.category выбирай из: "ответственность" / "сроки" / "оплата" / "расторжение" / "конфиденциальность".
- duties_balance: заполни численно (примерно), если нельзя, поставь 0 и нейтральную note.
- overall_status выбирай из: "Низкий уровень внимания" / "Средний уровень внимания" / "Повышенное внимание".
- missing_sections выбирай из: "форс-мажор" / "ответственность" / "порядок расторжения".`

const repairInstruction = "Исправь JSON: он должен быть строго по структуре примера и схеме. " +
	"Верни только валидный JSON без лишних полей."

func buildAnalysisPrompt(contractType, text string, pages int) Prompt {
	var b strings.Builder
	fmt.Fprintf(&b, "Тип договора: %s\n", contractType)
	fmt.Fprintf(&b, "Страниц (по файлу): %d\n\n", pages)
	b.WriteString("Ниже пример СТРОГОЙ структуры JSON (ориентир по полям и типам):\n")
	b.WriteString(reportTemplateExample)
	b.WriteString("\n\n")
	b.WriteString(fillingRules)
	b.WriteString("\n\nТекст договора (может быть обрезан):\n")
	b.WriteString(text)

	return Prompt{System: analysisSystemPrompt, User: b.String()}
}

func buildRepairPrompt(invalid string) Prompt {
	return Prompt{
		System: analysisSystemPrompt,
		User:   repairInstruction + "\n\n" + invalid,
	}
}
