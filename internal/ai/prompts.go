package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"alumninexus/server/internal/apperr"
)

type Feature string

const (
	FeatureChat                  Feature = "chat"
	FeatureAlumniRecommendations Feature = "alumni_recommendations"
	FeatureMentorMatches         Feature = "mentor_matches"
	FeatureEventSuggestions      Feature = "event_suggestions"
	FeatureCareerAdvice          Feature = "career_advice"
	FeatureInterviewQuestions    Feature = "interview_questions"
	FeatureIcebreakers           Feature = "networking_icebreakers"
	FeatureProfileAnalysis       Feature = "profile_analysis"
	FeatureSmartSearch           Feature = "smart_search"
)

// Prompt is a ready-to-send conversation for one assistant feature.
type Prompt struct {
	Feature   Feature
	Messages  []Message
	MaxTokens int
}

func prompt(feature Feature, maxTokens int, system, user string) Prompt {
	return Prompt{
		Feature:   feature,
		MaxTokens: maxTokens,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
}

// asJSON renders arbitrary client-supplied context for the prompt.
func asJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

func AlumniRecommendations(userProfile, alumni interface{}) Prompt {
	return prompt(FeatureAlumniRecommendations, 800,
		"You are an AI assistant specialized in alumni networking. Analyze user profiles and recommend the best alumni connections based on career interests, skills, and goals.",
		fmt.Sprintf("User Profile: %s\nAlumni List: %s\n\nRecommend the top 5 alumni connections with brief reasons why each connection would be valuable.",
			asJSON(userProfile), asJSON(alumni)))
}

func MentorMatches(studentProfile, mentors interface{}) Prompt {
	return prompt(FeatureMentorMatches, 600,
		"You are a career counseling AI. Match students with mentors based on career aspirations, skills gaps, and mentor expertise.",
		fmt.Sprintf("Student Profile: %s\nAvailable Mentors: %s\n\nSuggest the top 3 mentors and explain how each can help the student's career growth.",
			asJSON(studentProfile), asJSON(mentors)))
}

func EventSuggestions(userProfile, events interface{}) Prompt {
	return prompt(FeatureEventSuggestions, 600,
		"You are an event recommendation AI. Suggest events that align with user interests and career goals.",
		fmt.Sprintf("User Profile: %s\nUpcoming Events: %s\n\nRecommend the most relevant events and explain why each would be beneficial.",
			asJSON(userProfile), asJSON(events)))
}

func CareerAdvice(query string, userContext interface{}) (Prompt, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Prompt{}, apperr.Invalid("Query is required")
	}
	return prompt(FeatureCareerAdvice, DefaultMaxTokens,
		"You are a professional career advisor with expertise in various industries. Provide actionable, personalized career advice.",
		fmt.Sprintf("User Context: %s\nQuestion: %s\n\nProvide specific, actionable career advice.", asJSON(userContext), query)), nil
}

func InterviewQuestions(jobRole, experience string) (Prompt, error) {
	jobRole, experience = strings.TrimSpace(jobRole), strings.TrimSpace(experience)
	if jobRole == "" || experience == "" {
		return Prompt{}, apperr.Invalid("Job role and experience are required")
	}
	return prompt(FeatureInterviewQuestions, 1000,
		"You are an interview preparation expert. Generate relevant interview questions based on job role and experience level.",
		fmt.Sprintf("Job Role: %s\nExperience Level: %s\n\nGenerate 5 technical and 5 behavioral interview questions with sample answers.", jobRole, experience)), nil
}

func Icebreakers(first, second interface{}) Prompt {
	return prompt(FeatureIcebreakers, 400,
		"You are a networking coach. Generate conversation starters that help professionals connect meaningfully.",
		fmt.Sprintf("Person 1: %s\nPerson 2: %s\n\nGenerate 3 conversation starters that highlight common interests or potential collaboration opportunities.",
			asJSON(first), asJSON(second)))
}

func ProfileAnalysis(profile interface{}) (Prompt, error) {
	if profile == nil {
		return Prompt{}, apperr.Invalid("Profile data is required")
	}
	return prompt(FeatureProfileAnalysis, 600,
		"You are a professional profile analyst. Provide constructive feedback to improve professional profiles.",
		fmt.Sprintf("Profile: %s\n\nAnalyze this profile and provide:\n1. Strengths (2-3 points)\n2. Areas for improvement (2-3 points)\n3. Specific actionable suggestions",
			asJSON(profile))), nil
}

func SmartSearch(query string, searchContext interface{}) (Prompt, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Prompt{}, apperr.Invalid("Search query is required")
	}
	return prompt(FeatureSmartSearch, 300,
		"You are a search assistant. Understand user intent and provide relevant results with explanations.",
		fmt.Sprintf("Search Query: %s\nContext: %s\n\nInterpret the search intent and suggest relevant filters or refine the search query.",
			query, asJSON(searchContext))), nil
}
