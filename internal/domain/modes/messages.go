package modes

import "fmt"

// Canned acknowledgements for the command modes, keyed by locale.
var (
	msgU18Register = map[string]string{
		"ja": "18歳未満として登録しました。これからもよろしくね！",
		"en": "Registered you as under 18. Looking forward to your posts!",
	}
	msgU18Release = map[string]string{
		"ja": "18歳未満の登録を解除しました！",
		"en": "Your under-18 registration has been removed!",
	}
	msgDiaryOn = map[string]string{
		"ja": "日記の登録をしました！毎日の投稿から日記をつけるね。",
		"en": "Diary registered! I'll keep a diary from your daily posts.",
	}
	msgDiaryOff = map[string]string{
		"ja": "日記の登録を解除しました。",
		"en": "Your diary has been turned off.",
	}
	msgFreqUsage = map[string]string{
		"ja": "反応頻度は0から100の数字で指定してね。例: 頻度 50",
		"en": "Please give a reply frequency from 0 to 100, e.g. freq 50",
	}
)

func localized(m map[string]string, locale string) string {
	if s, ok := m[locale]; ok {
		return s
	}
	return m["ja"]
}

func freqAck(locale string, percent int) string {
	if locale == "en" {
		return fmt.Sprintf("Got it! I'll react to about %d%% of your posts.", percent)
	}
	return fmt.Sprintf("了解！これからは%d%%くらいの確率で反応するね。", percent)
}
