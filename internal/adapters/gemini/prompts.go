package gemini

import (
	"fmt"
	"strings"

	"github.com/okian/affirmbot/internal/config"
	"github.com/okian/affirmbot/internal/domain/model"
)

const (
	systemJA = `あなたはSNS上でフォロワーの投稿を全肯定するbotです。
相手を否定せず、具体的な投稿内容に触れて、温かく短い言葉で返してください。
絵文字は使わないでください。空の行は入れないでください。`
	systemEN = `You are a social media bot that affirms whatever your followers post.
Never criticize. Refer to what they actually wrote and answer warmly and briefly.
Do not use emojis. Do not include blank lines.`

	minorJA = "相手は18歳未満です。年齢にふさわしい内容にしてください。"
	minorEN = "The user is under 18. Keep the content age-appropriate."
)

// task holds the per-mode instruction in both languages.
type task struct {
	ja, en string
}

var tasks = map[string]task{
	config.ModeAffirmation: {
		ja: `次の投稿を全肯定する返信を100文字以内で書いてください。
あわせて、投稿のポジティブさを0から100の整数で採点してください。
出力はJSONのみ: {"text": "返信", "score": 数値}`,
		en: `Write a reply under 200 characters that fully affirms the post below.
Also rate how positive the post is as an integer from 0 to 100.
Output JSON only: {"text": "reply", "score": number}`,
	},
	config.ModeFortune: {
		ja: "ユーザの今日の運勢を占ってください。ラッキーアイテムを含め、前向きな内容で300文字程度にしてください。",
		en: "Tell the user's fortune for today, including a lucky item. Keep it upbeat, about 300 characters.",
	},
	config.ModeAnalyze: {
		ja: `ユーザ自身のポストとユーザがいいねしたポストを基に、性格分析をしてください。500文字程度。
具体的なポストやいいねの内容に触れ、次の点を含めてください。
ポジティブなポストの割合。ポストといいねから分かる趣味。いいねから分かる相性の良さそうな人。心がけるといいこと。
悪い内容は含めず、全肯定のスタンスで書いてください。`,
		en: `Analyze the user's personality from their own posts and the posts they liked, in about 500 characters.
Refer to specific posts and likes. Cover the share of positive posts, hobbies suggested by posts and likes, people they would get along with judging by their likes, and something to keep in mind.
Stay fully positive and never critical.`,
	},
	config.ModeDJ: {
		ja: "投稿の雰囲気に合う実在の曲を1曲選び、曲名とアーティスト、選んだ理由を200文字程度で紹介してください。",
		en: "Pick one real song that fits the mood of the post. Give the title, artist and why, in about 200 characters.",
	},
	config.ModeConversation: {
		ja: "botへの返信として届いた投稿です。会話を続ける返信を150文字以内で書いてください。",
		en: "This post is a reply to the bot. Continue the conversation in under 250 characters.",
	},
	config.ModeCheer: {
		ja: "ユーザが宣伝したいと言っている投稿です。フォロワーに向けた応援コメントを150文字以内で書いてください。",
		en: "The user wants this post promoted. Write a short cheer for it aimed at the bot's followers, under 250 characters.",
	},
}

const (
	judgeJA = `次の投稿を応援のためにリポストしてよいか判定してください。
政治、宗教、成人向け、誹謗中傷、金銭の要求を含むものは不可です。
出力はJSONのみ: {"result": true または false, "comment": "理由"}`
	judgeEN = `Decide whether the post below may be reposted as a cheer.
Politics, religion, adult content, harassment and requests for money are not allowed.
Output JSON only: {"result": true or false, "comment": "reason"}`
)

func system(locale string) string {
	if locale == "en" {
		return systemEN
	}
	return systemJA
}

// prompt renders the user turn for req. instruction overrides the mode task.
func prompt(req model.GenerationRequest, instruction string) (string, error) {
	ja := req.Locale != "en"
	if instruction == "" {
		t, ok := tasks[req.Mode]
		if !ok {
			return "", fmt.Errorf("%w: no prompt for mode %q", model.ErrGeneration, req.Mode)
		}
		instruction = t.en
		if ja {
			instruction = t.ja
		}
	}

	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n")
	if req.IsU18 {
		if ja {
			b.WriteString(minorJA)
		} else {
			b.WriteString(minorEN)
		}
		b.WriteString("\n")
	}
	b.WriteString("-----\n")
	if ja {
		fmt.Fprintf(&b, "ユーザ名: %s\n", req.UserName)
	} else {
		fmt.Fprintf(&b, "Username: %s\n", req.UserName)
	}
	for i, p := range req.Posts {
		if ja {
			fmt.Fprintf(&b, "ポスト%d: %s\n", i+1, p)
		} else {
			fmt.Fprintf(&b, "Post %d: %s\n", i+1, p)
		}
	}
	for i, l := range req.Likes {
		if ja {
			fmt.Fprintf(&b, "いいね%d: %s\n", i+1, l)
		} else {
			fmt.Fprintf(&b, "Liked post %d: %s\n", i+1, l)
		}
	}
	return b.String(), nil
}
