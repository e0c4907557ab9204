package generator

const jobSystemPrompt = "Eres un experto reclutador que diseña entrevistas técnicas a partir de ofertas de trabajo. Responde únicamente con JSON válido."

const cvSystemPrompt = "Eres un experto reclutador que prepara entrevistas a partir del CV del candidato. Responde únicamente con JSON válido."

// Both prompts take the raw input as their only verb.
const jobPrompt = `Analiza la siguiente oferta de trabajo y genera entre 5 y 10 preguntas o actividades para entrevistar a un candidato.

OFERTA:
%s

Cada elemento debe evaluar una o más habilidades que la oferta exige. Mezcla preguntas conceptuales, situacionales y al menos una actividad práctica breve.

Devuelve un objeto JSON con esta forma exacta:
{
  "job_summary": "resumen del puesto en una o dos frases",
  "required_skills": ["habilidad"],
  "questions": [
    {
      "type": "pregunta | actividad",
      "content": "texto de la pregunta o actividad",
      "skills_evaluated": ["habilidad"],
      "difficulty": "básico | intermedio | avanzado"
    }
  ]
}`

const cvPrompt = `Analiza el siguiente CV y genera entre 5 y 10 preguntas o actividades para profundizar en la experiencia del candidato.

CV:
%s

Las preguntas deben referirse a proyectos, tecnologías y logros concretos del CV y ajustarse a su nivel de experiencia.

Devuelve un objeto JSON con esta forma exacta:
{
  "cv_summary": "resumen del perfil en una o dos frases",
  "identified_skills": ["habilidad"],
  "experience_level": "junior | mid | senior",
  "questions": [
    {
      "type": "pregunta | actividad",
      "content": "texto de la pregunta o actividad",
      "skills_evaluated": ["habilidad"],
      "difficulty": "básico | intermedio | avanzado"
    }
  ]
}`
