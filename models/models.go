package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are exported from their respective files:
// - Session, Question, Persona, Education, SessionStatus from session.go
// - Interaction, Evaluation, CategoryScore from interaction.go
// - Category and the scoring rubric from rubric.go
// - Report, QuestionReport, ReportRecord from report.go

// Database schema overview:
// 1. sessions - One interview run, its join code, candidate profile, persona and question list
// 2. interactions - Append-only question/answer/evaluation log, ordered by id
// 3. reports - The aggregated final evaluation, one row per session, replaced on regeneration
