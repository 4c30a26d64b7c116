package journal

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

// Sentiment is the label derived from the mood score.
type Sentiment string

const (
	// SentimentPositive labels mood scores of 7 and above.
	SentimentPositive Sentiment = "positive"
	// SentimentNegative labels mood scores of 4 and below.
	SentimentNegative Sentiment = "negative"
	// SentimentBalanced labels every score in between.
	SentimentBalanced Sentiment = "balanced"
)

const (
	moodBaseline          = 5.0
	moodTextWeight        = 2.0
	moodTagWeight         = 1.0
	moodWorthItBonus      = 1.5
	moodNotWorthItPenalty = 1.0
	moodLengthBonus       = 0.5
	moodLengthThreshold   = 50
	moodMin               = 1
	moodMax               = 10
	positiveThreshold     = 7
	negativeThreshold     = 4
)

var positiveWords = wordSet(
	"good", "great", "happy", "joy", "grateful", "thankful", "love", "calm", "peace", "peaceful",
	"proud", "excited", "wonderful", "amazing", "relaxed", "hope", "hopeful", "fun", "nice", "better",
	"bien", "buen", "bueno", "buena", "feliz", "alegre", "alegría", "agradecido", "agradecida",
	"gracias", "amor", "tranquilo", "tranquila", "paz", "orgulloso", "orgullosa", "genial",
	"increíble", "maravilloso", "esperanza", "divertido", "mejor", "rico", "contento", "contenta",
)

var negativeWords = wordSet(
	"bad", "sad", "angry", "tired", "stress", "stressed", "anxious", "anxiety", "worried", "lonely",
	"awful", "terrible", "hate", "hurt", "afraid", "fear", "upset", "worse", "exhausted", "cry",
	"mal", "malo", "mala", "triste", "enojado", "enojada", "cansado", "cansada", "estrés",
	"estresado", "estresada", "ansioso", "ansiosa", "ansiedad", "preocupado", "preocupada", "solo",
	"sola", "horrible", "odio", "miedo", "peor", "agotado", "agotada", "llorar", "dolor",
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// Derived holds the fields recomputed from an entry's content on every save.
type Derived struct {
	WordCount int
	MoodScore int
	Sentiment Sentiment
	Summary   string
}

// Derive computes the derived fields. It is a pure function of its inputs.
func Derive(reflection string, positiveTags, negativeTags int, worthIt *bool) Derived {
	wordCount := WordCount(reflection)
	score := MoodScore(reflection, positiveTags, negativeTags, worthIt)
	return Derived{
		WordCount: wordCount,
		MoodScore: score,
		Sentiment: SentimentFor(score),
		Summary:   Summary(positiveTags, negativeTags, worthIt, wordCount),
	}
}

// WordCount counts whitespace-delimited tokens.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// MoodScore returns the 1-10 mood score for the entry content.
func MoodScore(reflection string, positiveTags, negativeTags int, worthIt *bool) int {
	score := moodBaseline

	positiveHits, negativeHits := lexiconHits(reflection)
	switch {
	case positiveHits > negativeHits:
		score += moodTextWeight
	case negativeHits > positiveHits:
		score -= moodTextWeight
	}

	switch {
	case positiveTags > negativeTags:
		score += moodTagWeight
	case negativeTags > positiveTags:
		score -= moodTagWeight
	}

	if worthIt != nil {
		if *worthIt {
			score += moodWorthItBonus
		} else {
			score -= moodNotWorthItPenalty
		}
	}

	if WordCount(reflection) > moodLengthThreshold {
		score += moodLengthBonus
	}

	rounded := int(math.Round(score))
	if rounded < moodMin {
		return moodMin
	}
	if rounded > moodMax {
		return moodMax
	}
	return rounded
}

// SentimentFor maps a mood score to its label.
func SentimentFor(score int) Sentiment {
	switch {
	case score >= positiveThreshold:
		return SentimentPositive
	case score <= negativeThreshold:
		return SentimentNegative
	default:
		return SentimentBalanced
	}
}

// Summary renders the templated narrative stored alongside each entry.
func Summary(positiveTags, negativeTags int, worthIt *bool, wordCount int) string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "You noted %s and %s.",
		pluralize(positiveTags, "positive moment", "positive moments"),
		pluralize(negativeTags, "growth moment", "growth moments"))

	switch {
	case positiveTags > negativeTags:
		builder.WriteString(" The good outweighed the hard today.")
	case negativeTags > positiveTags:
		builder.WriteString(" Today asked a lot of you; naming it is a first step.")
	case positiveTags > 0:
		builder.WriteString(" Light and shadow were in balance.")
	}

	if worthIt != nil {
		if *worthIt {
			builder.WriteString(" You felt the day was worth it.")
		} else {
			builder.WriteString(" You felt the day was not worth it.")
		}
	}

	if wordCount > 0 {
		fmt.Fprintf(&builder, " Your reflection ran %s.", pluralize(wordCount, "word", "words"))
	}
	return builder.String()
}

func lexiconHits(text string) (int, int) {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	positive, negative := 0, 0
	for _, token := range tokens {
		if _, ok := positiveWords[token]; ok {
			positive++
		}
		if _, ok := negativeWords[token]; ok {
			negative++
		}
	}
	return positive, negative
}

func pluralize(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("1 %s", singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
