package notifier

import (
	"fmt"
	"strings"
	"time"

	"DNAHunter/internal/model"
)

func periodName(p model.Period) string {
	if p == model.PeriodWeekly {
		return "周线"
	}
	return "日线"
}

// quoteURL builds the Eastmoney quote page link for a stock code.
func quoteURL(code string) string {
	market := "sz"
	if strings.HasPrefix(code, "6") {
		market = "sh"
	}
	return fmt.Sprintf("http://quote.eastmoney.com/%s%s.html", market, code)
}

// FormatScanReport formats the ranked match list into a Telegram message.
func FormatScanReport(rep *model.ScanReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("🧬 <b>DNA序列匹配结果</b> | %s %s\n",
		periodName(rep.Period), rep.FinishedAt.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("区间: %s ~ %s | 扫描 %d 只 | 耗时 %s\n\n",
		rep.Start.Format("2006-01-02"), rep.End.Format("2006-01-02"),
		rep.Scanned, rep.Duration.Round(time.Second)))

	for i, m := range rep.Matches {
		b.WriteString(fmt.Sprintf("%d. <b>%s</b> (%s) 匹配度 %.1f%% | 现价 %.2f\n",
			i+1, m.Name, m.Code, m.Score*100, m.Price))
		b.WriteString(fmt.Sprintf("目标: <code>%s</code>\n", rep.TargetSeq))
		b.WriteString(fmt.Sprintf("实际: <code>%s</code>\n", m.Sequence))
		if diff := diffLine(rep.TargetSeq, m.Sequence); diff != "" {
			b.WriteString(fmt.Sprintf("差异: <code>%s</code>\n", diff))
		}
		b.WriteString(fmt.Sprintf("%s\n\n", quoteURL(m.Code)))
	}

	return b.String()
}

// diffLine marks positions where the two sequences differ with X. Only
// meaningful when lengths match.
func diffLine(target, actual string) string {
	if len(target) != len(actual) {
		return ""
	}
	out := make([]byte, len(target))
	for i := 0; i < len(target); i++ {
		if target[i] == actual[i] {
			out[i] = target[i]
		} else {
			out[i] = 'X'
		}
	}
	return string(out)
}

// FormatNoMatches formats the explicit empty-result outcome.
func FormatNoMatches(rep *model.ScanReport) string {
	return fmt.Sprintf("🔍 <b>未找到匹配股票</b>\n\n%s扫描 %d 只, 区间 %s ~ %s\n请检查日期范围是否覆盖了足够的K线数量。",
		periodName(rep.Period), rep.Scanned,
		rep.Start.Format("2006-01-02"), rep.End.Format("2006-01-02"))
}

// FormatScanStarted formats the scan kickoff status message.
func FormatScanStarted(target string, period model.Period) string {
	return fmt.Sprintf("🚀 开始全市场 DNA 匹配 (%s)\n目标序列 %d 位",
		periodName(period), len(target))
}

// FormatScanFailed formats a user-visible scan failure.
func FormatScanFailed(err error) string {
	return fmt.Sprintf("❌ 扫描失败: %v", err)
}
