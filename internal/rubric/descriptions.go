package rubric

var dimensionTitles = map[Dimension]string{
	Performance1: "Claridad y Coherencia en la Explicación",
	Performance2: "Fomento de la Participación e Interacción",
	Performance3: "Manejo de Herramientas Tecnológicas y Plataforma",
	Performance4: "Gestión del Tiempo y Ritmo de la Clase",
	Performance5: "Retroalimentación (Feedback) y Evaluación Formativa",
	Performance6: "Clima Emocional y Empatía",
}

var dimensionDescriptions = map[Dimension]map[Level]string{
	Performance1: {
		LevelI:   "Su explicación es confusa, poco clara, con uso excesivo de jerga. No hay progresión lógica en los temas.",
		LevelII:  "Su explicación generalmente es clara, pero con momentos de confusión o falta de fluidez.",
		LevelIII: "La explicación es muy clara, lógica y fluida. Utiliza lenguaje comprensible y ejemplos pertinentes.",
		LevelIV:  "Explica excepcionalmente con clara, concisa y cautivadora, la sesión de aprendizaje. Simplifica lo complejo con eficiencia y usa analogías conceptuales. Usa la clase invertida o entrega material extra, antes de la sesión.",
	},
	Performance2: {
		LevelI:   "La clase predominantemente, es unilateral. Se observa pocas o nulas oportunidades para la participación de los estudiantes, a través del chat, los estudiantes no usan rl micro, porque el docente no lo promueve.",
		LevelII:  "Intenta esporádicamente la interacción con los estudiantes, pero no logra una participación sostenida o equitativa, a través del chat y/o micro.",
		LevelIII: "Fomenta activamente la participación mediante preguntas, encuestas o actividades. Escucha y responde a los estudiantes, a través del chat y/o micro.",
		LevelIV:  "Empieza explorando saberes previos de los estudintes. Promueve una interacción constante y significativa. Utiliza diversas estrategias para involucrar a todos o casi todos los estudiantes, a través del chat y/o micro. Motiva al estudiante a lo largo de la clase.",
	},
	Performance3: {
		LevelI:   "Se observa en el docente dificultades frecuentes con el uso de la plataforma y herramientas. Problemas técnicos que interrumpen la clase.",
		LevelII:  "Maneja lo básico de la plataforma; resuelve ocasionalmente problemas técnicos, el uso de recursos tecnológicos es limitado.",
		LevelIII: "Maneja fluidamente la plataforma Meet y las herramientas básicas. Utiliza los recursos tecnológicos de manera efectiva para el aprendizaje. Usa lápices y resaltadores virtuales para aclarar las diapositivas. ",
		LevelIV:  "Domina excepcional la plataforma Meet y herramientas avanzadas. Maximiza el potencial de la tecnología para la interacción, visualización y evaluación. Usa gamificaciones como Kahoot, Quizizz, Cerebriti, entre otras. Uso de Tableta gráfica.",
	},
	Performance4: {
		LevelI:   "Poca gestión del tiempo; temas incompletos o exceso de contenido. Su ritmo es inadecuado para el aprendizaje.",
		LevelII:  "Gestiiona el tiempo aceptablemente, pero con algunas desviaciones. El ritmo podría ser más ajustado.",
		LevelIII: "Gestiona eficientemente el tiempo, cubriendo los objetivos de la clase de manera adecuada. Su ritmo esequilibrado permitiendo la comprensión.",
		LevelIV:  "Gestiona cronometrada del tiempo, optimizando cada minuto para el aprendizaje. Su ritmo es dinámico y adaptable a las necesidades de los estudiantes, haciendo pausas cada cierto tiempo, para evaluar lo explicado. ",
	},
	Performance5: {
		LevelI:   "La retroalimentación del docente es escasa, genérica o tardía. No utiliza la evaluación formativa durante la clase.",
		LevelII:  "Retroalimenta ocasionalmente, a veces, poco específico. Utiliza algunas preguntas, pero sin un seguimiento claro.",
		LevelIII: "Ofrece retroalimentación clara y específica durante la clase. Utiliza preguntas y actividades para verificar la comprensión.",
		LevelIV:  "Ofrece retroalimentación reflexiva, personalizada. Diseña actividades de evaluación formativa innovadoras para monitorear el aprendizaje en tiempo real. Lo que planifica lo evalua, formativamente. Se organiza para evaluar poco a poco a los estudiantes a lo largo del tiempo.",
	},
	Performance6: {
		LevelI:   "El trato del docente es impersonal o distante. No genera un ambiente de confianza para los estudiantes.",
		LevelII:  "Su trato, generalmente, es respetuoso, pero con poca expresión de empatía. No siempre logra conectar emocionalmente.",
		LevelIII: "Establece un ambiente de respeto y confianza. Demuestra empatía al escuchar y atender las preocupaciones de los estudiantes.",
		LevelIV:  "Crea un ambiente virtual excepcionalmente cálido, seguro y motivador. Muestra profunda empatía, comprensión y cercanía, fomentando el bienestar emocional. Conecta con la cámara para transmitir emociones.",
	},
}
