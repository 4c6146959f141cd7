package resolver

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/meetlink/internal/domain/model"
)

func TestScore(t *testing.T) {
	Convey("Given a resolver with default generic words", t, func() {
		r := New()

		Convey("When a weekly sync mentions the project key", func() {
			candidates := []model.ProjectCandidate{
				{Key: "SUBS", Name: "Snuggle Bugz"},
				{Key: "OTHER", Name: "Other Corp"},
			}
			scored := r.Score("SUBS Weekly Sync", candidates)

			Convey("Then the key match and strong pattern are summed", func() {
				So(scored, ShouldHaveLength, 2)
				So(scored[0].ProjectKey, ShouldEqual, "SUBS")
				So(scored[0].Score, ShouldEqual, 58)
				So(scored[0].Confidence, ShouldEqual, 1.0)
				So(scored[0].MatchingFactors, ShouldResemble, []string{
					"project key in title",
					`strong meeting pattern "sync"`,
				})
			})

			Convey("Then the unrelated project scores zero and is not eligible", func() {
				So(scored[1].ProjectKey, ShouldEqual, "OTHER")
				So(scored[1].Score, ShouldEqual, 0)
				So(scored[1].Confidence, ShouldEqual, 0)
				So(AboveThreshold(scored), ShouldHaveLength, 1)
			})
		})

		Convey("When several name words appear", func() {
			scored := r.Score("Snuggle Bugz planning", []model.ProjectCandidate{{Key: "SUBS", Name: "Snuggle Bugz"}})

			Convey("Then each word, the multi-word bonus and the pattern count", func() {
				So(scored[0].Score, ShouldEqual, 30+30+20+8)
				So(scored[0].MatchingFactors, ShouldResemble, []string{
					`name word "snuggle" in title`,
					`name word "bugz" in title`,
					"multiple project words in title",
					`strong meeting pattern "planning"`,
				})
			})
		})

		Convey("When only a generic name word appears", func() {
			scored := r.Score("Platform office hours", []model.ProjectCandidate{{Key: "DPX", Name: "Data Platform"}})

			Convey("Then it earns the small generic weight and stays under the threshold", func() {
				So(scored[0].Score, ShouldEqual, 2)
				So(scored[0].MatchingFactors, ShouldResemble, []string{`generic name word "platform" in title`})
				So(AboveThreshold(scored), ShouldBeEmpty)
			})
		})

		Convey("When the key appears with a moderate pattern", func() {
			scored := r.Score("CORE status update", []model.ProjectCandidate{{Key: "CORE", Name: "Ledger"}})

			Convey("Then the moderate tier applies", func() {
				So(scored[0].Score, ShouldEqual, 54)
			})
		})

		Convey("When the key appears with scrum", func() {
			scored := r.Score("CORE scrum", []model.ProjectCandidate{{Key: "CORE", Name: "Ledger"}})

			Convey("Then the generic meeting keyword tier applies", func() {
				So(scored[0].Score, ShouldEqual, 53)
				So(scored[0].MatchingFactors[1], ShouldEqual, `meeting keyword "scrum"`)
			})
		})

		Convey("When a meeting word appears without any project match", func() {
			scored := r.Score("Weekly sync", []model.ProjectCandidate{{Key: "CORE", Name: "Ledger"}})

			Convey("Then no pattern bonus is given", func() {
				So(scored[0].Score, ShouldEqual, 0)
				So(scored[0].MatchingFactors, ShouldBeEmpty)
			})
		})

		Convey("When name words are short", func() {
			scored := r.Score("big api hub sync", []model.ProjectCandidate{{Key: "ZZQ", Name: "Big API Hub"}})

			Convey("Then they are ignored", func() {
				So(scored[0].Score, ShouldEqual, 0)
			})
		})

		Convey("When there are no candidates", func() {
			scored := r.Score("Anything", nil)

			Convey("Then the result is empty", func() {
				So(scored, ShouldNotBeNil)
				So(scored, ShouldBeEmpty)
			})
		})

		Convey("When candidates tie", func() {
			candidates := []model.ProjectCandidate{
				{Key: "AAA", Name: "First"},
				{Key: "BBB", Name: "Second"},
				{Key: "CCC", Name: "Third"},
			}
			scored := r.Score("unrelated", candidates)

			Convey("Then input order is preserved", func() {
				So(scored[0].ProjectKey, ShouldEqual, "AAA")
				So(scored[1].ProjectKey, ShouldEqual, "BBB")
				So(scored[2].ProjectKey, ShouldEqual, "CCC")
			})
		})
	})
}

func TestScoreProperties(t *testing.T) {
	Convey("Given a fixed candidate list", t, func() {
		r := New()
		candidates := []model.ProjectCandidate{
			{Key: "SUBS", Name: "Snuggle Bugz"},
			{Key: "PAY", Name: "Payments Platform"},
			{Key: "MOB", Name: "Mobile Checkout"},
		}
		titles := []string{
			"SUBS Weekly Sync",
			"Payments platform retrospective",
			"Mobile checkout demo with PAY team",
			"",
			"random chatter",
		}

		Convey("Then scoring is deterministic", func() {
			for _, title := range titles {
				So(r.Score(title, candidates), ShouldResemble, r.Score(title, candidates))
			}
		})

		Convey("Then confidence stays within bounds and ranking is descending", func() {
			for _, title := range titles {
				scored := r.Score(title, candidates)
				for i, s := range scored {
					So(s.Confidence, ShouldBeBetweenOrEqual, 0, 1)
					So(s.Score, ShouldBeGreaterThanOrEqualTo, 0)
					if i > 0 {
						So(scored[i-1].Score, ShouldBeGreaterThanOrEqualTo, s.Score)
					}
				}
			}
		})
	})
}

func TestEcosystemName(t *testing.T) {
	Convey("Given a resolver configured with an ecosystem name", t, func() {
		r := New(WithEcosystemName("Acme"))
		candidates := []model.ProjectCandidate{{Key: "BILL", Name: "Acme Invoicing"}}

		Convey("When the title only mentions the ecosystem", func() {
			scored := r.Score("Acme all hands", candidates)

			Convey("Then the word counts as generic", func() {
				So(scored[0].Score, ShouldEqual, 2)
			})
		})

		Convey("When extra generic words are configured", func() {
			r = New(WithGenericWords(" Invoicing ", ""))
			scored := r.Score("invoicing chat", candidates)

			Convey("Then they also count as generic", func() {
				So(scored[0].Score, ShouldEqual, 2)
			})
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Given candidates with curated keywords", t, func() {
		r := New()
		candidates := []model.ProjectCandidate{
			{Key: "ZZQ", Name: "Mobile", Keywords: []string{"checkout", "cart"}},
			{Key: "YYR", Name: "Growth", Keywords: []string{"cart"}},
		}

		Convey("When the weighted scorer finds a match", func() {
			res := r.Resolve("ZZQ sync about checkout", candidates)

			Convey("Then weighted mode wins and keywords are not used", func() {
				So(res.Mode, ShouldEqual, ModeWeighted)
				So(res.Eligible, ShouldHaveLength, 1)
				So(res.Eligible[0].ProjectKey, ShouldEqual, "ZZQ")
				So(res.Eligible[0].Score, ShouldEqual, 58)
			})
		})

		Convey("When only a keyword matches", func() {
			res := r.Resolve("Cart abandonment deep dive", candidates)

			Convey("Then the first project in input order is the single keyword match", func() {
				So(res.Mode, ShouldEqual, ModeKeyword)
				So(res.Eligible, ShouldHaveLength, 1)
				So(res.Eligible[0].ProjectKey, ShouldEqual, "ZZQ")
				So(res.Eligible[0].Score, ShouldEqual, KeywordMatchScore)
				So(res.Eligible[0].Confidence, ShouldEqual, 1.0)
				So(res.Eligible[0].MatchingFactors, ShouldResemble, []string{`keyword "cart" in title`})
				So(res.Ranked, ShouldHaveLength, 2)
			})
		})

		Convey("When nothing matches", func() {
			res := r.Resolve("Lunch", candidates)

			Convey("Then the mode is none with no eligible candidates", func() {
				So(res.Mode, ShouldEqual, ModeNone)
				So(res.Eligible, ShouldBeEmpty)
			})
		})
	})
}

func TestConfidence(t *testing.T) {
	Convey("Confidence is clamped to [0,1]", t, func() {
		So(Confidence(-3), ShouldEqual, 0)
		So(Confidence(0), ShouldEqual, 0)
		So(Confidence(5), ShouldEqual, 0.5)
		So(Confidence(58), ShouldEqual, 1)
	})
}
